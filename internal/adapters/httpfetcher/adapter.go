package httpfetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
	"time"

	"listing-aggregator-service/internal/contextkeys"
	"listing-aggregator-service/internal/core/domain"
	"listing-aggregator-service/internal/core/port"

	"github.com/gocolly/colly/v2"
	"github.com/gocolly/colly/v2/extensions"
)

const defaultRequestTimeout = 3 * time.Second

// DomainLimit - ограничения для одного домена источника
type DomainLimit struct {
	DomainGlob  string
	Parallelism int
	RandomDelay time.Duration
}

// Config - настройки HTTP-клиента источников
type Config struct {
	RequestTimeout time.Duration
	AllowedDomains []string // пусто - любые домены
	Limits         []DomainLimit
	RandomizeAgent bool
}

// CollyFetcherAdapter выполняет запросы к источникам через colly.
// Родительский коллектор хранит общие лимиты, на каждый запрос создается клон со своими обработчиками.
type CollyFetcherAdapter struct {
	collector      *colly.Collector
	randomizeAgent bool
}

// NewCollyFetcherAdapter - конструктор
func NewCollyFetcherAdapter(cfg Config) (*CollyFetcherAdapter, error) {
	options := []colly.CollectorOption{
		colly.AllowURLRevisit(),
		// 404 и прочие ошибки должны дойти до адаптера как обычный ответ
		colly.ParseHTTPErrorResponse(),
	}
	if len(cfg.AllowedDomains) > 0 {
		options = append(options, colly.AllowedDomains(cfg.AllowedDomains...))
	}
	c := colly.NewCollector(options...)

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	c.SetRequestTimeout(timeout)

	for _, l := range cfg.Limits {
		parallelism := l.Parallelism
		if parallelism <= 0 {
			parallelism = 1
		}
		err := c.Limit(&colly.LimitRule{
			DomainGlob:  l.DomainGlob,
			Parallelism: parallelism,
			RandomDelay: l.RandomDelay,
		})
		if err != nil {
			return nil, fmt.Errorf("CollyFetcherAdapter: failed to set limit rule for %s: %w", l.DomainGlob, err)
		}
	}

	return &CollyFetcherAdapter{
		collector:      c,
		randomizeAgent: cfg.RandomizeAgent,
	}, nil
}

// Fetch выполняет один запрос. Ответ с любым HTTP-статусом возвращается без ошибки.
func (a *CollyFetcherAdapter) Fetch(ctx context.Context, req domain.RequestSpec) (*domain.RawResponse, error) {
	logger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{"component": "CollyFetcherAdapter(Fetch)"})

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	if req.URL == "" {
		return nil, fmt.Errorf("%w: request URL is empty", domain.ErrConfiguration)
	}

	collector := a.collector.Clone()
	collector.Context = ctx
	if a.randomizeAgent {
		// обработчики не копируются при клонировании, поэтому расширения подключаются к клону
		extensions.RandomUserAgent(collector)
		extensions.Referer(collector)
	}

	var result *domain.RawResponse

	collector.OnRequest(func(r *colly.Request) {
		logger.Debug("Making request", port.Fields{"method": r.Method, "url": r.URL.String()})
	})

	collector.OnResponse(func(r *colly.Response) {
		headers := http.Header{}
		if r.Headers != nil {
			headers = r.Headers.Clone()
		}
		result = &domain.RawResponse{
			StatusCode: r.StatusCode,
			RequestURL: req.URL,
			FinalURL:   r.Request.URL.String(),
			Headers:    headers,
			Body:       r.Body,
		}
	})

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	if err := collector.Request(method, req.URL, body, nil, req.Headers); err != nil {
		classified := classifyTransportError(ctx, err)
		logger.Debug("Request failed", port.Fields{"url": req.URL, "error": classified.Error()})
		return nil, classified
	}
	collector.Wait()

	if result == nil {
		return nil, fmt.Errorf("%w: no response received for %s", domain.ErrSourceShape, req.URL)
	}
	return result, nil
}

// classifyTransportError помечает сбои соединения и таймауты как временные
func classifyTransportError(ctx context.Context, err error) error {
	if IsTransient(err) || errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(ctx.Err(), context.Canceled) {
		return fmt.Errorf("%w: %w", domain.ErrTransientNetwork, err)
	}
	return fmt.Errorf("fetch failed: %w", err)
}

// IsTransient - таймаут, сброс или обрыв соединения
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, domain.ErrTransientNetwork) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
