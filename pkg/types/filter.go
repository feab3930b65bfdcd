package types

type Filter struct {
	Search         string                 `json:"search"`
	Sort           map[string]string      `json:"sort"`
	Filter         map[string]interface{} `json:"filter"`
	Limit          int                    `json:"limit"`
	Offset         int                    `json:"offset"`
	Page           int                    `json:"page"`
	WithPagination bool                   `json:"withPagination"`
}

// /work-orders?sort[created_at]=desc&filter[status]=in-progress&limit=10&offset=0&withPagination=true
