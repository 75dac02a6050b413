package halooglasi

// serverListData - состояние страницы выдачи
type serverListData struct {
	Ads        []listAd `json:"Ads"`
	TotalCount int      `json:"TotalCount"`
}

type listAd struct {
	ID          string      `json:"Id"`
	Title       string      `json:"Title"`
	RelativeURL string      `json:"RelativeUrl"`
	ImageURLs   []string    `json:"ImageURLs"`
	ValidFrom   string      `json:"ValidFrom"`
	OtherFields otherFields `json:"OtherFields"`
}

// currentClassified - состояние страницы объявления
type currentClassified struct {
	ID             string      `json:"Id"`
	StateID        int         `json:"StateId"`
	GeoLocationRPT string      `json:"GeoLocationRPT"` // "44.8012,20.4751"
	ImageURLs      []string    `json:"ImageURLs"`
	OtherFields    otherFields `json:"OtherFields"`
}

type currentContactData struct {
	Advertiser struct {
		DisplayName string `json:"DisplayName"`
	} `json:"Advertiser"`
}

// otherFields - поля объявления под внутренними именами сайта
type otherFields struct {
	Price          float64 `json:"cena_d"`
	PriceUnit      string  `json:"cena_d_unit_s"`
	Size           float64 `json:"kvadratura_d"`
	Rooms          string  `json:"broj_soba_s"`
	Floor          string  `json:"sprat_s"`
	FloorTotal     string  `json:"sprat_od_s"`
	City           string  `json:"grad_s"`
	Municipality   string  `json:"lokacija_s"`
	Microlocation  string  `json:"mikrolokacija_s"`
	Street         string  `json:"ulica_t"`
	Heating        string  `json:"grejanje_s"`
	Furnished      string  `json:"namestenost_s"`
	AdvertiserType string  `json:"oglasivac_nekretnine_s"`
}
