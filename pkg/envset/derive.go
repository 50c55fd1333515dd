package envset

import (
	"fmt"
	"strconv"
)

const (
	basePortFloor  = 8000
	basePortWindow = 10000
)

// PortBlock is the group of host ports derived from one base value.
type PortBlock struct {
	Base      int
	Studio    int
	KongHTTPS int
	Analytics int
	Postgres  int
	Pooler    int
}

// Ports derives the port block for a millisecond timestamp.
// Instances created close together may still collide; nothing here
// probes the host.
func Ports(timestamp int64) PortBlock {
	offset := timestamp % basePortWindow
	if offset < 0 {
		offset += basePortWindow
	}
	base := basePortFloor + int(offset)
	return PortBlock{
		Base:      base,
		Studio:    base + 100,
		KongHTTPS: base + 443,
		Analytics: base + 1000,
		Postgres:  base + 2000,
		Pooler:    base + 3000,
	}
}

// Apply writes the port derived keys of p into s.
func (p PortBlock) Apply(s Set) {
	s[PostgresPort] = strconv.Itoa(p.Postgres)
	s[PoolerProxyPortTransaction] = strconv.Itoa(p.Pooler)
	s[KongHTTPPort] = strconv.Itoa(p.Base)
	s[KongHTTPSPort] = strconv.Itoa(p.KongHTTPS)
	s[AnalyticsPort] = strconv.Itoa(p.Analytics)
	s[StudioPort] = strconv.Itoa(p.Studio)
	s[APIExternalURL] = localURL(p.Base)
	s[SupabasePublicURL] = localURL(p.Base)
	s[SiteURL] = localURL(p.Studio)
}

func localURL(port int) string {
	return fmt.Sprintf("http://localhost:%d", port)
}

// defaults carries the literal values of every key that is not port derived.
var defaults = Set{
	PostgresPassword:           "your-super-secret-and-long-postgres-password",
	JWTSecret:                  "your-super-secret-jwt-token-with-at-least-32-characters-long",
	AnonKey:                    "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9.eyAgCiAgICAicm9sZSI6ICJhbm9uIiwKICAgICJpc3MiOiAic3VwYWJhc2UtZGVtbyIsCiAgICAiaWF0IjogMTY0MTc2OTIwMCwKICAgICJleHAiOiAxNzk5NTM1NjAwCn0.dc_X5iR_VP_qT0zsiyj_I_OZ2T9FtRU2BBNWN8Bu4GE",
	ServiceRoleKey:             "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9.eyAgCiAgICAicm9sZSI6ICJzZXJ2aWNlX3JvbGUiLAogICAgImlzcyI6ICJzdXBhYmFzZS1kZW1vIiwKICAgICJpYXQiOiAxNjQxNzY5MjAwLAogICAgImV4cCI6IDE3OTk1MzU2MDAKfQ.DaYlNEoUrrEn2Ig7tqibS-PHK5vgusbcbo7X36XVt4Q",
	DashboardUsername:          "supabase",
	DashboardPassword:          "this_password_is_insecure_and_should_be_updated",
	SecretKeyBase:              "UpNVntn3cDxHJpq99YMc1T1AQgQpc8kfYTuRgBiYa15BLrx8etQoXz3gZv1/u2oq",
	VaultEncKey:                "your-encryption-key-32-chars-min",
	PostgresHost:               "db",
	PostgresDB:                 "postgres",
	PoolerDefaultPoolSize:      "20",
	PoolerMaxClientConn:        "100",
	PoolerTenantID:             "your-tenant-id",
	PoolerDBPoolSize:           "5",
	PgrstDBSchemas:             "public,storage,graphql_public",
	AdditionalRedirectURLs:     "",
	JWTExpiry:                  "3600",
	DisableSignup:              "false",
	MailerURLPathsConfirmation: "/auth/v1/verify",
	MailerURLPathsInvite:       "/auth/v1/verify",
	MailerURLPathsRecovery:     "/auth/v1/verify",
	MailerURLPathsEmailChange:  "/auth/v1/verify",
	EnableEmailSignup:          "true",
	EnableEmailAutoconfirm:     "false",
	SMTPAdminEmail:             "admin@example.com",
	SMTPHost:                   "supabase-mail",
	SMTPPort:                   "2500",
	SMTPUser:                   "fake_mail_user",
	SMTPPass:                   "fake_mail_password",
	SMTPSenderName:             "fake_sender",
	EnableAnonymousUsers:       "false",
	EnablePhoneSignup:          "true",
	EnablePhoneAutoconfirm:     "true",
	StudioDefaultOrganization:  "Default Organization",
	StudioDefaultProject:       "Default Project",
	ImgproxyEnableWebpDetect:   "true",
	OpenAIAPIKey:               "",
	FunctionsVerifyJWT:         "false",
	LogflarePublicAccessToken:  "your-super-secret-and-long-logflare-key-public",
	LogflarePrivateAccessToken: "your-super-secret-and-long-logflare-key-private",
	DockerSocketLocation:       "/var/run/docker.sock",
	GoogleProjectID:            "GOOGLE_PROJECT_ID",
	GoogleProjectNumber:        "GOOGLE_PROJECT_NUMBER",
}

// Derive builds the complete default configuration for a new instance
// from a millisecond timestamp. Equal timestamps yield equal sets.
func Derive(timestamp int64) Set {
	s := defaults.Clone()
	Ports(timestamp).Apply(s)
	return s
}
