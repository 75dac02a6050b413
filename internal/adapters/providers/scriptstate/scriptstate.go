// Package scriptstate достает JSON-литералы, встроенные в HTML-страницы как присваивание
// в теге <script>. Скрипт не исполняется: литерал находится по маркеру и балансу скобок.
package scriptstate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"listing-aggregator-service/internal/core/domain"
)

var (
	// ErrMarkerNotFound - маркер отсутствует на странице. Для страниц выдачи это означает ноль результатов.
	ErrMarkerNotFound = errors.New("script state marker not found")
	// ErrNullLiteral - маркеру присвоен null
	ErrNullLiteral = errors.New("script state is null")
)

// Extract возвращает сырой объектный литерал, который следует за маркером
func Extract(body []byte, marker string) ([]byte, error) {
	idx := bytes.Index(body, []byte(marker))
	if idx < 0 {
		return nil, ErrMarkerNotFound
	}

	rest := body[idx+len(marker):]
	start := bytes.IndexFunc(rest, func(r rune) bool {
		return r != ' ' && r != '\t' && r != '\r' && r != '\n' && r != '=' && r != ':'
	})
	switch {
	case start < 0:
		return nil, fmt.Errorf("%w: no value after marker %q", domain.ErrSourceShape, marker)
	case bytes.HasPrefix(rest[start:], []byte("null")):
		return nil, fmt.Errorf("%w: marker %q: %w", domain.ErrSourceShape, marker, ErrNullLiteral)
	case rest[start] != '{':
		return nil, fmt.Errorf("%w: no object literal after marker %q", domain.ErrSourceShape, marker)
	}

	end, err := matchBrace(rest[start:])
	if err != nil {
		return nil, fmt.Errorf("%w: marker %q: %w", domain.ErrSourceShape, marker, err)
	}
	return rest[start : start+end+1], nil
}

// Decode находит литерал по маркеру и разбирает его как JSON
func Decode(body []byte, marker string, v any) error {
	raw, err := Extract(body, marker)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: marker %q: %w", domain.ErrSourceShape, marker, err)
	}
	return nil
}

// matchBrace возвращает индекс закрывающей скобки для '{' в позиции 0.
// Скобки внутри строк не учитываются.
func matchBrace(s []byte) (int, error) {
	depth := 0
	var quote byte
	escaped := false

	for i, b := range s {
		if quote != 0 {
			switch {
			case escaped:
				escaped = false
			case b == '\\':
				escaped = true
			case b == quote:
				quote = 0
			}
			continue
		}

		switch b {
		case '"', '\'':
			quote = b
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, nil
			}
		}
	}
	return 0, errors.New("unbalanced object literal")
}
