package cityexpert

// searchRequest - тело POST-запроса к поисковому API
type searchRequest struct {
	PtID           []int    `json:"ptId"`
	CityID         int      `json:"cityId"`
	RentOrSale     string   `json:"rentOrSale"`
	CurrentPage    int      `json:"currentPage"`
	ResultsPerPage int      `json:"resultsPerPage"`
	MinPrice       *float64 `json:"minPrice"`
	MaxPrice       *float64 `json:"maxPrice"`
	Structure      []string `json:"structure"`
	Furnishing     []int    `json:"furnishingArray"`
	Polygons       []string `json:"polygonsArray"`
	SearchSource   string   `json:"searchSource"`
	Sort           string   `json:"sort"`
}

type searchResponse struct {
	Result []property `json:"result"`
	Info   *struct {
		HasNextPage bool `json:"hasNextPage"`
	} `json:"info"`
}

type property struct {
	UniqueID       string   `json:"uniqueID"`
	PropID         int64    `json:"propId"`
	Location       string   `json:"location"` // "44.8012, 20.4751"
	Street         string   `json:"street"`
	Floor          string   `json:"floor"`
	Size           float64  `json:"size"`
	Structure      string   `json:"structure"`
	Municipality   string   `json:"municipality"`
	Polygons       []string `json:"polygons"`
	RentOrSale     string   `json:"rentOrSale"`
	Price          float64  `json:"price"`
	CoverPhoto     string   `json:"coverPhoto"`
	FirstPublished string   `json:"firstPublished"`
	Furnishing     []int    `json:"furnishingArray"`
	Heating        []int    `json:"heatingArray"`
}
