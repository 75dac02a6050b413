package providerkit

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"listing-aggregator-service/internal/adapters/httpfetcher"
	"listing-aggregator-service/internal/contextkeys"
	"listing-aggregator-service/internal/core/domain"
	"listing-aggregator-service/internal/core/port"
)

// InspectFunc - дополнительная проверка тела успешного ответа конкретным источником
type InspectFunc func(raw *domain.RawResponse) domain.Liveness

// Probe выполняет общие правила проверки актуальности:
// 404/410 - неактивно, редирект на другой канонический URL - неактивно,
// сетевой сбой или прочая ошибка - unknown. Успешный ответ передается в inspect.
func Probe(ctx context.Context, fetcher port.FetcherPort, source domain.SourceName, req domain.RequestSpec, inspect InspectFunc) domain.Liveness {
	logger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"component": "Probe",
		"source":    string(source),
		"url":       req.URL,
	})

	raw, err := fetcher.Fetch(ctx, req)
	if err != nil {
		if httpfetcher.IsTransient(err) || errors.Is(err, domain.ErrTransientNetwork) {
			logger.Warn("Transient network error during liveness probe, result unknown", port.Fields{"error": err.Error()})
		} else {
			logger.Error("Liveness probe failed, result unknown", err, nil)
		}
		return domain.LivenessUnknown
	}

	return Classify(raw, inspect)
}

// Classify применяет правила к уже полученному ответу
func Classify(raw *domain.RawResponse, inspect InspectFunc) domain.Liveness {
	switch {
	case raw.StatusCode == http.StatusNotFound || raw.StatusCode == http.StatusGone:
		return domain.LivenessInactive
	case raw.StatusCode < 200 || raw.StatusCode >= 300:
		return domain.LivenessUnknown
	case !SameCanonicalURL(raw.RequestURL, raw.FinalURL):
		return domain.LivenessInactive
	}

	if inspect == nil {
		return domain.LivenessActive
	}
	return inspect(raw)
}

// SameCanonicalURL сравнивает URL без схемы, www, завершающего слэша и query
func SameCanonicalURL(requested, final string) bool {
	if final == "" {
		return true
	}
	return canonical(requested) == canonical(final)
}

func canonical(u string) string {
	u = strings.ToLower(strings.TrimSpace(u))
	u = strings.TrimPrefix(u, "https://")
	u = strings.TrimPrefix(u, "http://")
	u = strings.TrimPrefix(u, "www.")
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	return strings.TrimSuffix(u, "/")
}
