package models

type YouTubeCommentThreadsResponse struct {
	Items         []YouTubeCommentThread `json:"items"`
	NextPageToken string                 `json:"nextPageToken,omitempty"`
	PageInfo      YouTubePageInfo        `json:"pageInfo"`
}

type YouTubeCommentThread struct {
	ID      string               `json:"id"`
	Snippet YouTubeThreadSnippet `json:"snippet"`
}

type YouTubeThreadSnippet struct {
	VideoID         string         `json:"videoId"`
	TopLevelComment YouTubeComment `json:"topLevelComment"`
	TotalReplyCount int            `json:"totalReplyCount"`
}

type YouTubeComment struct {
	ID      string                `json:"id"`
	Snippet YouTubeCommentSnippet `json:"snippet"`
}

type YouTubeCommentSnippet struct {
	TextOriginal      string `json:"textOriginal"`
	AuthorDisplayName string `json:"authorDisplayName"`
	PublishedAt       string `json:"publishedAt"`
	LikeCount         int    `json:"likeCount"`
}

type YouTubePageInfo struct {
	TotalResults   int `json:"totalResults"`
	ResultsPerPage int `json:"resultsPerPage"`
}

type YouTubeErrorResponse struct {
	Error YouTubeError `json:"error"`
}

type YouTubeError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
