package envset

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/multision/SupaConsole/pkg/jwt"
)

const alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// Lengths of regenerated secrets.
const (
	PostgresPasswordLength  = 32
	JWTSecretLength         = 40
	DashboardPasswordLength = 16
	SecretKeyBaseLength     = 64
	VaultEncKeyLength       = 32
	LogflareTokenLength     = 64
)

// RandomSource picks an index in [0, n). *rand.Rand satisfies it.
type RandomSource interface {
	IntN(n int) int
}

// KeyIssuer mints a signed API key for a role.
type KeyIssuer func(role jwt.Role, secret string) (string, error)

// NewRandomSource returns a ChaCha8 backed source seeded from the OS.
// Values are placeholder defaults; operators are expected to review them
// before exposing an instance.
func NewRandomSource() RandomSource {
	var seed [32]byte
	if _, err := crand.Read(seed[:]); err != nil {
		binary.LittleEndian.PutUint64(seed[:], rand.Uint64())
	}
	return rand.New(rand.NewChaCha8(seed))
}

// RandomString returns an alphanumeric string of length n.
func RandomString(rnd RandomSource, n int) string {
	if n <= 0 {
		return ""
	}
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		b.WriteByte(alphanumeric[rnd.IntN(len(alphanumeric))])
	}
	return b.String()
}

// Regenerate builds the update applied by a "new secure secrets" request.
// timestamp is sampled once by the caller and drives both the port block
// and the pooler tenant id so the episode has a single source of truth.
func Regenerate(timestamp int64, rnd RandomSource, issue KeyIssuer) (Set, error) {
	if rnd == nil {
		rnd = NewRandomSource()
	}
	if issue == nil {
		issue = jwt.IssueRoleKey
	}
	secret := RandomString(rnd, JWTSecretLength)
	anon, err := issue(jwt.RoleAnon, secret)
	if err != nil {
		return nil, fmt.Errorf("issue anon key: %w", err)
	}
	service, err := issue(jwt.RoleServiceRole, secret)
	if err != nil {
		return nil, fmt.Errorf("issue service key: %w", err)
	}
	update := Set{
		PostgresPassword:           RandomString(rnd, PostgresPasswordLength),
		JWTSecret:                  secret,
		AnonKey:                    anon,
		ServiceRoleKey:             service,
		DashboardPassword:          RandomString(rnd, DashboardPasswordLength),
		SecretKeyBase:              RandomString(rnd, SecretKeyBaseLength),
		VaultEncKey:                RandomString(rnd, VaultEncKeyLength),
		PoolerTenantID:             fmt.Sprintf("project-%d", timestamp),
		LogflarePublicAccessToken:  RandomString(rnd, LogflareTokenLength),
		LogflarePrivateAccessToken: RandomString(rnd, LogflareTokenLength),
	}
	Ports(timestamp).Apply(update)
	return update, nil
}
