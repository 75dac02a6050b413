package domain

import "net/http"

// RequestSpec - описание HTTP-запроса к источнику. Строится адаптером без ввода-вывода.
type RequestSpec struct {
	Method  string
	URL     string
	Headers http.Header
	Body    []byte
}

// RawResponse - сырой ответ источника
type RawResponse struct {
	StatusCode int
	RequestURL string // запрошенный URL
	FinalURL   string // URL после редиректов
	Headers    http.Header
	Body       []byte
}

// Redirected сообщает, что итоговый URL отличается от запрошенного
func (r *RawResponse) Redirected() bool {
	return r != nil && r.FinalURL != "" && r.FinalURL != r.RequestURL
}

// Candidate - сырая запись со страницы результатов, еще не нормализованная
type Candidate struct {
	SourceID string
	URL      string
	Price    float64 // 0 - цена не указана
	Payload  any     // данные, понятные только своему адаптеру
}

// DetailMode - нужна ли адаптеру страница объявления
type DetailMode int

const (
	DetailNone     DetailMode = iota // все поля есть в выдаче
	DetailEnrich                     // страница объявления дополняет поля
	DetailRequired                   // выдача содержит только id, url и цену
)

func (m DetailMode) String() string {
	switch m {
	case DetailEnrich:
		return "enrich"
	case DetailRequired:
		return "required"
	default:
		return "none"
	}
}

// Liveness - результат проверки, активно ли объявление на источнике
type Liveness int

const (
	LivenessUnknown Liveness = iota
	LivenessActive
	LivenessInactive
)

func (l Liveness) String() string {
	switch l {
	case LivenessActive:
		return "active"
	case LivenessInactive:
		return "inactive"
	default:
		return "unknown"
	}
}
