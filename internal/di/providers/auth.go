package providers

import (
	"github.com/samber/do/v2"

	"github.com/quillpress/quill-server/internal/auth"
	"github.com/quillpress/quill-server/internal/config"
	"github.com/quillpress/quill-server/internal/logger"
)

// AuthKey wraps the authentication key bytes.
type AuthKey []byte

// ProvideAuthKey loads or generates the PASETO key. JWT deployments still
// get a key on disk so switching formats later needs no manual step.
func ProvideAuthKey(i do.Injector) (AuthKey, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	key, err := auth.LoadOrGenerateKey(cfg.Data.BasePath)
	if err != nil {
		return nil, err
	}

	cfg.Auth.TokenKey = key

	log.Info("Authentication key loaded",
		"token_format", cfg.Auth.TokenFormat,
		"token_duration", cfg.Auth.TokenDuration,
	)

	return AuthKey(key), nil
}

// ProvideTokenService provides the token service selected by configuration.
func ProvideTokenService(i do.Injector) (auth.TokenService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	_ = do.MustInvoke[AuthKey](i)

	return auth.NewTokenService(cfg.Auth)
}
