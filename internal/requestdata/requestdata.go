package requestdata

import (
	"context"
)

type requestDataKey struct{}

// RequestData carries the caller identity extracted from the bearer token.
// UserID and Role are external UMS identifiers; Role may be empty when the
// token carries no role claim (resolution is a per-path policy decision).
type RequestData struct {
	TokenString string
	UserID      string
	Role        string
}

func WithRequestData(ctx context.Context, rd *RequestData) context.Context {
	return context.WithValue(ctx, requestDataKey{}, rd)
}

func GetRequestData(ctx context.Context) *RequestData {
	val := ctx.Value(requestDataKey{})
	if rd, ok := val.(*RequestData); ok {
		return rd
	}
	return nil
}
