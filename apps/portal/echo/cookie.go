package echoportal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"

	"github.com/trezcool/perception/core"
	"github.com/trezcool/perception/core/session"
)

const (
	nonceSize  = 24
	sealerInfo = "perception session cookie"
)

var errCookieTampered = errors.New("session cookie cannot be opened")

// sealer encrypts and authenticates cookie values with a key derived from the app secret.
type sealer struct {
	key [32]byte
}

func newSealer(secret string) (*sealer, error) {
	s := new(sealer)
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte(sealerInfo))
	if _, err := io.ReadFull(kdf, s.key[:]); err != nil {
		return nil, errors.Wrap(err, "deriving cookie key")
	}
	return s, nil
}

func (s *sealer) seal(plain []byte) (string, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", errors.Wrap(err, "generating nonce")
	}
	box := secretbox.Seal(nonce[:], plain, &nonce, &s.key)
	return base64.RawURLEncoding.EncodeToString(box), nil
}

func (s *sealer) open(value string) ([]byte, error) {
	box, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil || len(box) < nonceSize+secretbox.Overhead {
		return nil, errCookieTampered
	}
	var nonce [nonceSize]byte
	copy(nonce[:], box[:nonceSize])
	plain, ok := secretbox.Open(nil, box[nonceSize:], &nonce, &s.key)
	if !ok {
		return nil, errCookieTampered
	}
	return plain, nil
}

type cookieOptions struct {
	name   string
	secure bool
	maxAge time.Duration
}

// record is the persisted session: only the token survives.
type record struct {
	Token string `json:"token"`
}

// cookieStorage is the durable session record of one browser: a sealed cookie.
type cookieStorage struct {
	ctx    echo.Context
	sealer *sealer
	opts   cookieOptions
	logger core.Logger
}

var _ session.TokenStorage = (*cookieStorage)(nil)

// Load returns the token of the request's cookie. A cookie that cannot be opened
// (tampered with, or sealed with another secret) counts as no session.
func (cs *cookieStorage) Load() (string, error) {
	cookie, err := cs.ctx.Cookie(cs.opts.name)
	if err != nil || cookie.Value == "" {
		return "", nil
	}
	plain, err := cs.sealer.open(cookie.Value)
	if err != nil {
		cs.logger.Debug("ignoring session cookie", err)
		return "", nil
	}
	var rec record
	if err := json.Unmarshal(plain, &rec); err != nil {
		cs.logger.Debug("ignoring session cookie", errors.Wrap(err, "decoding record"))
		return "", nil
	}
	return rec.Token, nil
}

func (cs *cookieStorage) Save(token string) error {
	plain, err := json.Marshal(record{Token: token})
	if err != nil {
		return errors.Wrap(err, "encoding record")
	}
	value, err := cs.sealer.seal(plain)
	if err != nil {
		return err
	}
	cs.ctx.SetCookie(cs.cookie(value, int(cs.opts.maxAge.Seconds())))
	return nil
}

func (cs *cookieStorage) Clear() error {
	cs.ctx.SetCookie(cs.cookie("", -1))
	return nil
}

func (cs *cookieStorage) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     cs.opts.name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   cs.opts.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
