package common

type Pagination struct {
	Total    int64 `json:"total"`
	Page     int   `json:"page,omitempty"`
	PageSize int   `json:"pageSize,omitempty"`
}

type SearchResponse struct {
	Data       interface{} `json:"data"`
	Pagination Pagination  `json:"pagination"`
}

func NewSearchResponse(data interface{}, total int64) *SearchResponse {
	return &SearchResponse{
		Data: data,
		Pagination: Pagination{
			Total: total,
		},
	}
}

// Paged sets the page window the data was cut from.
func (r *SearchResponse) Paged(page, pageSize int) *SearchResponse {
	r.Pagination.Page = page
	r.Pagination.PageSize = pageSize
	return r
}
