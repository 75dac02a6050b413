package fourzida

type searchResponse struct {
	Ads   []ad `json:"ads"`
	Total *int `json:"total"`
}

type ad struct {
	ID          string   `json:"id"`
	URLPath     string   `json:"urlPath"`
	Price       float64  `json:"price"`
	M2          float64  `json:"m2"`
	RoomCount   float64  `json:"roomCount"`
	Address     string   `json:"address"`
	PlaceNames  []string `json:"placeNames"` // от микрорайона к городу
	Floor       *int     `json:"floor"`
	Furnished   string   `json:"furnished"`
	HeatingType string   `json:"heatingType"`
	Lat         *float64 `json:"lat"`
	Lng         *float64 `json:"lng"`
	CreatedAt   string   `json:"createdAt"`
	Image       *struct {
		Search map[string]string `json:"search"`
	} `json:"image"`
}
