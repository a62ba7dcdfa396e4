package utils

import (
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// JwksCreatePublicKey fetches the key set at jwksURL and refreshes it in the
// background every refreshInterval.
func JwksCreatePublicKey(jwksURL string, refreshInterval time.Duration, log *zap.Logger) (*keyfunc.JWKS, error) {
	options := keyfunc.Options{
		RefreshInterval: refreshInterval,
		RefreshErrorHandler: func(err error) {
			log.Error("refreshing jwks failed", zap.String("url", jwksURL), zap.Error(err))
		},
	}

	jwks, err := keyfunc.Get(jwksURL, options)
	if err != nil {
		return nil, errors.Wrapf(err, "get jwks from %s", jwksURL)
	}
	return jwks, nil
}
