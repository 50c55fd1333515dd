// Package envset derives, merges and renders the environment variables
// of a self-hosted Supabase stack.
package envset

import (
	"sort"
)

// Set maps an environment variable name to its value.
type Set map[string]string

// Variable names understood by the Supabase docker-compose stack.
const (
	PostgresPassword           = "POSTGRES_PASSWORD"
	JWTSecret                  = "JWT_SECRET"
	AnonKey                    = "ANON_KEY"
	ServiceRoleKey             = "SERVICE_ROLE_KEY"
	DashboardUsername          = "DASHBOARD_USERNAME"
	DashboardPassword          = "DASHBOARD_PASSWORD"
	SecretKeyBase              = "SECRET_KEY_BASE"
	VaultEncKey                = "VAULT_ENC_KEY"
	PostgresHost               = "POSTGRES_HOST"
	PostgresDB                 = "POSTGRES_DB"
	PostgresPort               = "POSTGRES_PORT"
	PoolerProxyPortTransaction = "POOLER_PROXY_PORT_TRANSACTION"
	PoolerDefaultPoolSize      = "POOLER_DEFAULT_POOL_SIZE"
	PoolerMaxClientConn        = "POOLER_MAX_CLIENT_CONN"
	PoolerTenantID             = "POOLER_TENANT_ID"
	PoolerDBPoolSize           = "POOLER_DB_POOL_SIZE"
	KongHTTPPort               = "KONG_HTTP_PORT"
	KongHTTPSPort              = "KONG_HTTPS_PORT"
	AnalyticsPort              = "ANALYTICS_PORT"
	PgrstDBSchemas             = "PGRST_DB_SCHEMAS"
	SiteURL                    = "SITE_URL"
	AdditionalRedirectURLs     = "ADDITIONAL_REDIRECT_URLS"
	JWTExpiry                  = "JWT_EXPIRY"
	DisableSignup              = "DISABLE_SIGNUP"
	APIExternalURL             = "API_EXTERNAL_URL"
	MailerURLPathsConfirmation = "MAILER_URLPATHS_CONFIRMATION"
	MailerURLPathsInvite       = "MAILER_URLPATHS_INVITE"
	MailerURLPathsRecovery     = "MAILER_URLPATHS_RECOVERY"
	MailerURLPathsEmailChange  = "MAILER_URLPATHS_EMAIL_CHANGE"
	EnableEmailSignup          = "ENABLE_EMAIL_SIGNUP"
	EnableEmailAutoconfirm     = "ENABLE_EMAIL_AUTOCONFIRM"
	SMTPAdminEmail             = "SMTP_ADMIN_EMAIL"
	SMTPHost                   = "SMTP_HOST"
	SMTPPort                   = "SMTP_PORT"
	SMTPUser                   = "SMTP_USER"
	SMTPPass                   = "SMTP_PASS"
	SMTPSenderName             = "SMTP_SENDER_NAME"
	EnableAnonymousUsers       = "ENABLE_ANONYMOUS_USERS"
	EnablePhoneSignup          = "ENABLE_PHONE_SIGNUP"
	EnablePhoneAutoconfirm     = "ENABLE_PHONE_AUTOCONFIRM"
	StudioDefaultOrganization  = "STUDIO_DEFAULT_ORGANIZATION"
	StudioDefaultProject       = "STUDIO_DEFAULT_PROJECT"
	StudioPort                 = "STUDIO_PORT"
	SupabasePublicURL          = "SUPABASE_PUBLIC_URL"
	ImgproxyEnableWebpDetect   = "IMGPROXY_ENABLE_WEBP_DETECTION"
	OpenAIAPIKey               = "OPENAI_API_KEY"
	FunctionsVerifyJWT         = "FUNCTIONS_VERIFY_JWT"
	LogflarePublicAccessToken  = "LOGFLARE_PUBLIC_ACCESS_TOKEN"
	LogflarePrivateAccessToken = "LOGFLARE_PRIVATE_ACCESS_TOKEN"
	DockerSocketLocation       = "DOCKER_SOCKET_LOCATION"
	GoogleProjectID            = "GOOGLE_PROJECT_ID"
	GoogleProjectNumber        = "GOOGLE_PROJECT_NUMBER"
)

// Group labels a block of related variables in rendered output.
type Group struct {
	Name string
	Keys []string
}

// Groups lists every known variable in documented order.
var Groups = []Group{
	{Name: "Secrets", Keys: []string{PostgresPassword, JWTSecret, AnonKey, ServiceRoleKey, DashboardUsername, DashboardPassword, SecretKeyBase, VaultEncKey}},
	{Name: "Database", Keys: []string{PostgresHost, PostgresDB, PostgresPort}},
	{Name: "Supavisor", Keys: []string{PoolerProxyPortTransaction, PoolerDefaultPoolSize, PoolerMaxClientConn, PoolerTenantID, PoolerDBPoolSize}},
	{Name: "Kong", Keys: []string{KongHTTPPort, KongHTTPSPort}},
	{Name: "Analytics", Keys: []string{AnalyticsPort}},
	{Name: "PostgREST", Keys: []string{PgrstDBSchemas}},
	{Name: "Auth", Keys: []string{SiteURL, AdditionalRedirectURLs, JWTExpiry, DisableSignup, APIExternalURL}},
	{Name: "Mailer", Keys: []string{MailerURLPathsConfirmation, MailerURLPathsInvite, MailerURLPathsRecovery, MailerURLPathsEmailChange}},
	{Name: "Email auth", Keys: []string{EnableEmailSignup, EnableEmailAutoconfirm, SMTPAdminEmail, SMTPHost, SMTPPort, SMTPUser, SMTPPass, SMTPSenderName, EnableAnonymousUsers}},
	{Name: "Phone auth", Keys: []string{EnablePhoneSignup, EnablePhoneAutoconfirm}},
	{Name: "Studio", Keys: []string{StudioDefaultOrganization, StudioDefaultProject, StudioPort, SupabasePublicURL}},
	{Name: "ImgProxy", Keys: []string{ImgproxyEnableWebpDetect}},
	{Name: "OpenAI", Keys: []string{OpenAIAPIKey}},
	{Name: "Functions", Keys: []string{FunctionsVerifyJWT}},
	{Name: "Logs", Keys: []string{LogflarePublicAccessToken, LogflarePrivateAccessToken, DockerSocketLocation}},
	{Name: "Google Cloud", Keys: []string{GoogleProjectID, GoogleProjectNumber}},
}

// KnownKeys is the flattened documented key order.
var KnownKeys = func() []string {
	keys := make([]string, 0, 64)
	for _, g := range Groups {
		keys = append(keys, g.Keys...)
	}
	return keys
}()

var knownIndex = func() map[string]int {
	idx := make(map[string]int, len(KnownKeys))
	for i, k := range KnownKeys {
		idx[k] = i
	}
	return idx
}()

// IsKnown reports whether key belongs to the documented vocabulary.
func IsKnown(key string) bool {
	_, ok := knownIndex[key]
	return ok
}

// Keys returns the keys of s, known keys first in documented order and
// any extra keys sorted after them.
func (s Set) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ii, iok := knownIndex[keys[i]]
		ji, jok := knownIndex[keys[j]]
		switch {
		case iok && jok:
			return ii < ji
		case iok:
			return true
		case jok:
			return false
		default:
			return keys[i] < keys[j]
		}
	})
	return keys
}

// Clone returns a shallow copy of s. A nil set clones to an empty one.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Missing returns the documented keys absent from s.
func (s Set) Missing() []string {
	var missing []string
	for _, k := range KnownKeys {
		if _, ok := s[k]; !ok {
			missing = append(missing, k)
		}
	}
	return missing
}
