// Package history 用观看记录过滤候选片单，并保证输出数量稳定。
package history

import "github.com/John-Robertt/BoxRec/internal/title"

// DefaultCount 是最终推荐条数。
const DefaultCount = 6

// Pick 是一条入选标题；Seen=true 表示它来自“已看过”分区的补位。
type Pick struct {
	Title string
	Seen  bool
}

// Selection 是过滤结果。
type Selection struct {
	Picks      []Pick
	Unseen     int // pool 中未看过的条数（补位前）
	Backfilled int // 从已看过分区补位的条数
}

// Titles 返回纯标题列表（保持顺序）。
func (s Selection) Titles() []string {
	out := make([]string, 0, len(s.Picks))
	for _, p := range s.Picks {
		out = append(out, p.Title)
	}
	return out
}

// Filter 把 pool 按观看记录切分为 unseen/seen（均保持 pool 顺序），返回恰好 min(n, 有效 pool) 条。
//
// unseen 不足 n 时，用 seen 补位（跳过比较键已入选的标题），保证“生成器给够就一定给够”。
// 补位的条目 Seen=true，调用方可据此向用户标记。
func Filter(candidates, watched []string, n int) Selection {
	if n <= 0 {
		return Selection{Picks: []Pick{}}
	}

	watchedKeys := make(map[string]struct{}, len(watched))
	for _, w := range watched {
		watchedKeys[title.Key(w)] = struct{}{}
	}

	var unseen, seen []string
	for _, c := range candidates {
		if _, ok := watchedKeys[title.Key(c)]; ok {
			seen = append(seen, c)
			continue
		}
		unseen = append(unseen, c)
	}

	sel := Selection{Picks: make([]Pick, 0, n), Unseen: len(unseen)}
	chosen := make(map[string]struct{}, n)
	for _, u := range unseen {
		if len(sel.Picks) >= n {
			return sel
		}
		chosen[title.Key(u)] = struct{}{}
		sel.Picks = append(sel.Picks, Pick{Title: u})
	}

	for _, s := range seen {
		if len(sel.Picks) >= n {
			break
		}
		k := title.Key(s)
		if _, ok := chosen[k]; ok {
			continue
		}
		chosen[k] = struct{}{}
		sel.Picks = append(sel.Picks, Pick{Title: s, Seen: true})
		sel.Backfilled++
	}
	return sel
}
