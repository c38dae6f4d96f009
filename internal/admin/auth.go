// 包 admin：后台会话令牌；HMAC-SHA256 自签 payload.sig，单一共享管理员凭据
package admin

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"os"
	"time"
)

// CookieName：后台会话 Cookie 名
const CookieName = "admin_session"

// TokenTTL：令牌有效期
const TokenTTL = 24 * time.Hour

// TokenPayload：令牌载荷
type TokenPayload struct {
	Sub string `json:"sub"`
	Iat int64  `json:"iat"`
	Exp int64  `json:"exp"`
}

// 开发环境缺省凭据：零配置起服；生产环境必须显式设置环境变量
const (
	devUsername = "dev"
	devPassword = "dev"
	devSecret   = "devdevdevdevdevdevdevdevdevdevdevdevdevdevdevdevdevdevdevdevdevdev"
)

func isProduction() bool { return os.Getenv("APP_ENV") == "production" }

// SecretFromEnv：读取签名密钥（hex 编码）
// 约束：生产环境缺失时报错拒绝启动，避免可伪造会话上线
func SecretFromEnv() ([]byte, error) {
	s := os.Getenv("ADMIN_SESSION_SECRET")
	if s == "" {
		if isProduction() {
			return nil, errors.New("ADMIN_SESSION_SECRET is not configured")
		}
		return []byte(devSecret), nil
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, errors.New("ADMIN_SESSION_SECRET must be hex encoded")
	}
	return b, nil
}

// CredentialsFromEnv：读取共享管理员凭据
func CredentialsFromEnv() (user, pass string, err error) {
	user = os.Getenv("ADMIN_USER")
	pass = os.Getenv("ADMIN_PASS")
	if user == "" || pass == "" {
		if isProduction() {
			return "", "", errors.New("ADMIN_USER/ADMIN_PASS are not configured")
		}
		return devUsername, devPassword, nil
	}
	return user, pass, nil
}

// CheckCredentials：常数时间比较登录凭据
func CheckCredentials(gotUser, gotPass, wantUser, wantPass string) bool {
	u := subtle.ConstantTimeCompare([]byte(gotUser), []byte(wantUser))
	p := subtle.ConstantTimeCompare([]byte(gotPass), []byte(wantPass))
	return u == 1 && p == 1
}

func b64(b []byte) string { return base64.RawURLEncoding.EncodeToString(b) }

func sign(payload string, secret []byte) string {
	h := hmac.New(sha256.New, secret)
	h.Write([]byte(payload))
	return b64(h.Sum(nil))
}

// SignToken：签发 24h 会话令牌（payload.sig）
func SignToken(username string, secret []byte, now time.Time) string {
	p := TokenPayload{Sub: username, Iat: now.Unix(), Exp: now.Add(TokenTTL).Unix()}
	raw, _ := json.Marshal(p)
	enc := b64(raw)
	return enc + "." + sign(enc, secret)
}

// VerifyToken：校验签名与有效期
// 约束：签名比较走 hmac.Equal（常数时间）；任何解析失败一律视为无效
func VerifyToken(token string, secret []byte, now time.Time) (*TokenPayload, bool) {
	var enc, sig string
	for i := 0; i < len(token); i++ {
		if token[i] == '.' {
			enc, sig = token[:i], token[i+1:]
			break
		}
	}
	if enc == "" || sig == "" {
		return nil, false
	}
	want := sign(enc, secret)
	if !hmac.Equal([]byte(sig), []byte(want)) {
		return nil, false
	}
	raw, err := base64.RawURLEncoding.DecodeString(enc)
	if err != nil {
		return nil, false
	}
	var p TokenPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, false
	}
	if now.Unix() >= p.Exp {
		return nil, false
	}
	return &p, true
}
