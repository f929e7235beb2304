// Package source holds the upstream API clients. Each client is composed with
// a Requester and converts every transport or payload failure into an absent
// result; none of them return errors for ordinary upstream trouble.
package source

import (
	"context"

	collyfetcher "github.com/JakeFAU/game-catalog-crawler/internal/fetcher/colly"
)

// Requester is the request helper injected into every client.
type Requester interface {
	Do(ctx context.Context, req collyfetcher.Request) (collyfetcher.Response, error)
}
