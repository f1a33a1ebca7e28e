package domain

// Movie 是元数据解析器补全后的电影记录（最小可用集）。
//
// 约束：
// - 字段缺失允许为空串，但结构必须稳定（JSON 始终包含全部字段）
// - Title 永远非空：解析失败时回退为原始标题（见 PlaceholderMovie）
type Movie struct {
	Title  string `json:"title"`
	Year   string `json:"year"`
	Poster string `json:"poster"`
	IMDbID string `json:"imdb_id"`
	Genre  string `json:"genre"`
}

// PlaceholderMovie 构造只有原始标题的占位记录（单条补全失败时使用，不影响整批）。
func PlaceholderMovie(title string) Movie {
	return Movie{Title: title}
}

// Recommendation 是一条最终推荐。
//
// Seen=true 表示该条来自“已看过”分区的补位（未看过的候选不足时为保证条数而回填）。
type Recommendation struct {
	Movie
	Seen bool `json:"seen"`
}
