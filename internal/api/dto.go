package api

import "github.com/starford/travelogue/internal/postservice"

// TagSummary is a node of the tag tree (aliased from the domain layer).
type TagSummary = postservice.TagSummary

// TagDetail is a tag with its posts (aliased from the domain layer).
type TagDetail = postservice.TagDetail

// PostListItem is a post in listings (aliased from the domain layer).
type PostListItem = postservice.PostListItem

// PostDetail is the full post response type (aliased from the domain layer).
type PostDetail = postservice.PostDetail

// TagListResponse wraps the tag tree.
type TagListResponse struct {
	Tags []TagSummary `json:"tags" validate:"required"`
}

// PostListResponse wraps paginated post listings.
type PostListResponse struct {
	Posts []PostListItem `json:"posts" validate:"required"`
	Total int            `json:"total" example:"42" validate:"required"`
}

// SeriesResponse lists the parts of a series, first part first.
type SeriesResponse struct {
	Parts []PostListItem `json:"parts" validate:"required"`
}

// RefreshResponse is returned when a refresh is accepted.
type RefreshResponse struct {
	Status string `json:"status" example:"accepted" validate:"required"`
}

// PhotoTagsResponse lists the photo tag lookup sorted by clean name.
type PhotoTagsResponse struct {
	PhotoTags []postservice.PhotoTag `json:"photoTags" validate:"required"`
}
