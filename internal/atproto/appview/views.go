package appview

// PostView is the AppView's hydrated post
// Matches social.coves.feed.defs#postView
type PostView struct {
	Viewer     *ViewerState  `json:"viewer,omitempty"`
	Author     *AuthorView   `json:"author"`
	Stats      *PostStats    `json:"stats,omitempty"`
	Community  *CommunityRef `json:"community"`
	Title      *string       `json:"title,omitempty"`
	Text       *string       `json:"text,omitempty"`
	CreatedAt  string        `json:"createdAt"`
	IndexedAt  string        `json:"indexedAt"`
	URI        string        `json:"uri"`
	CID        string        `json:"cid"`
	RKey       string        `json:"rkey"`
	TextFacets []interface{} `json:"textFacets,omitempty"`
}

// AuthorView is the author summary embedded in post and comment views
type AuthorView struct {
	DisplayName *string `json:"displayName,omitempty"`
	Avatar      *string `json:"avatar,omitempty"`
	DID         string  `json:"did"`
	Handle      string  `json:"handle"`
}

// CommunityRef is the community a post belongs to
type CommunityRef struct {
	Avatar *string `json:"avatar,omitempty"`
	DID    string  `json:"did"`
	Handle string  `json:"handle"`
	Name   string  `json:"name"`
}

// PostStats carries the server-authoritative score
type PostStats struct {
	Upvotes      int `json:"upvotes"`
	Downvotes    int `json:"downvotes"`
	Score        int `json:"score"`
	CommentCount int `json:"commentCount"`
}

// ViewerState is the viewer's relationship with a post
type ViewerState struct {
	Vote    *string `json:"vote,omitempty"` // "up" or "down"
	VoteURI *string `json:"voteUri,omitempty"`
	Saved   bool    `json:"saved"`
}

// CommentView is the AppView's hydrated comment
// For deleted comments, IsDeleted=true and content fields are empty
type CommentView struct {
	Viewer    *CommentViewerState `json:"viewer,omitempty"`
	Author    *AuthorView         `json:"author"`
	Post      *CommentRef         `json:"post"`
	Parent    *CommentRef         `json:"parent,omitempty"`
	Stats     *CommentStats       `json:"stats"`
	Content   string              `json:"content"`
	CreatedAt string              `json:"createdAt"`
	IndexedAt string              `json:"indexedAt"`
	URI       string              `json:"uri"`
	CID       string              `json:"cid"`
	IsDeleted bool                `json:"isDeleted,omitempty"`
}

// ThreadViewComment is a comment with its nested replies
// Replies keep server order
type ThreadViewComment struct {
	Comment *CommentView         `json:"comment"`
	Replies []*ThreadViewComment `json:"replies,omitempty"`
	HasMore bool                 `json:"hasMore,omitempty"`
}

// CommentRef is a minimal URI + CID reference
type CommentRef struct {
	URI string `json:"uri"`
	CID string `json:"cid"`
}

// CommentStats carries the server-authoritative score
type CommentStats struct {
	Upvotes    int `json:"upvotes"`
	Downvotes  int `json:"downvotes"`
	Score      int `json:"score"`
	ReplyCount int `json:"replyCount"`
}

// CommentViewerState is the viewer's relationship with a comment
type CommentViewerState struct {
	Vote    *string `json:"vote,omitempty"` // "up" or "down"
	VoteURI *string `json:"voteUri,omitempty"`
}

// GetCommentsResponse is the output of social.coves.community.comment.getComments
type GetCommentsResponse struct {
	Post     *PostView            `json:"post"`
	Cursor   *string              `json:"cursor,omitempty"`
	Comments []*ThreadViewComment `json:"comments"`
}

// GetCommentsParams are the query parameters for getComments
type GetCommentsParams struct {
	PostURI string
	Sort    string // "hot", "top", "new"; empty lets the AppView choose
	Depth   int    // Zero lets the AppView choose
	Limit   int    // Zero lets the AppView choose
	Cursor  string
}

// FeedViewPost wraps a post with feed context
type FeedViewPost struct {
	Post *PostView `json:"post"`
}

// FeedResponse is the output of the feed endpoints
type FeedResponse struct {
	Cursor *string         `json:"cursor,omitempty"`
	Feed   []*FeedViewPost `json:"feed"`
}

// GetFeedParams are the query parameters for feed endpoints
type GetFeedParams struct {
	Sort   string // "hot", "top", "new"; empty lets the AppView choose
	Limit  int    // Zero lets the AppView choose
	Cursor string
}
