package auth

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

func TestNewService_RequiresCollaborators(t *testing.T) {
	if _, err := NewService(ServiceConfig{Hasher: testHasher(t), Signing: testSigning()}); err == nil {
		t.Error("NewService() without directory should fail")
	}
	if _, err := NewService(ServiceConfig{Directory: newMemDirectory(), Signing: testSigning()}); err == nil {
		t.Error("NewService() without hasher should fail")
	}

	bad := testSigning()
	bad.Algorithm = "RS256"
	if _, err := NewService(ServiceConfig{Directory: newMemDirectory(), Hasher: testHasher(t), Signing: bad}); err == nil {
		t.Error("NewService() with asymmetric algorithm should fail")
	}
}

func TestLogin_CaseInsensitiveUsername(t *testing.T) {
	dir := newMemDirectory()
	svc := testService(t, dir)
	alice := seedTestUser(t, dir, svc.hasher, "alice", "secret1-long", RankStandard)

	session, err := svc.Login(context.Background(), "ALICE", "secret1-long")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	claims, err := svc.Verifier().VerifyAccess(session.Access.Token)
	if err != nil {
		t.Fatalf("VerifyAccess() error = %v", err)
	}
	if claims.Subject != alice.ID {
		t.Errorf("sub = %q, want %q", claims.Subject, alice.ID)
	}
	if claims.RankValue() != RankStandard {
		t.Errorf("rank = %d, want %d", claims.RankValue(), RankStandard)
	}
	if session.User.ID != alice.ID {
		t.Errorf("session user = %q, want %q", session.User.ID, alice.ID)
	}
}

func TestLogin_RefreshCookieAttributes(t *testing.T) {
	dir := newMemDirectory()
	svc := testService(t, dir)
	seedTestUser(t, dir, svc.hasher, "alice", "secret1-long", RankStandard)

	session, err := svc.Login(context.Background(), "alice", "secret1-long")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	c := session.RefreshCookie
	if c.Name != "refreshToken" {
		t.Errorf("cookie Name = %q, want refreshToken", c.Name)
	}
	if c.Value != session.Refresh.Token {
		t.Error("cookie should carry the refresh token")
	}
	if c.Path != "/auth/refresh" {
		t.Errorf("cookie Path = %q, want /auth/refresh", c.Path)
	}
	if !c.HttpOnly || !c.Secure {
		t.Errorf("cookie HttpOnly=%v Secure=%v, want both true", c.HttpOnly, c.Secure)
	}
	if c.SameSite != http.SameSiteNoneMode {
		t.Errorf("cookie SameSite = %v, want None", c.SameSite)
	}
	if c.MaxAge != int((24 * time.Hour).Seconds()) {
		t.Errorf("cookie MaxAge = %d, want %d", c.MaxAge, int((24 * time.Hour).Seconds()))
	}
}

func TestLogin_FailuresAreIndistinguishable(t *testing.T) {
	dir := newMemDirectory()
	svc := testService(t, dir)
	seedTestUser(t, dir, svc.hasher, "alice", "secret1-long", RankStandard)

	_, wrongPassword := svc.Login(context.Background(), "alice", "wrong-password")
	_, unknownUser := svc.Login(context.Background(), "mallory", "secret1-long")

	if !errors.Is(wrongPassword, ErrInvalidCredentials) {
		t.Errorf("wrong password error = %v, want ErrInvalidCredentials", wrongPassword)
	}
	if !errors.Is(unknownUser, ErrInvalidCredentials) {
		t.Errorf("unknown user error = %v, want ErrInvalidCredentials", unknownUser)
	}
	if wrongPassword.Error() != unknownUser.Error() {
		t.Errorf("messages differ: %q vs %q", wrongPassword, unknownUser)
	}
}

func TestLogin_DirectoryUnavailable(t *testing.T) {
	dir := newMemDirectory()
	svc := testService(t, dir, func(c *ServiceConfig) { c.LookupTimeout = 10 * time.Millisecond })
	seedTestUser(t, dir, svc.hasher, "alice", "secret1-long", RankStandard)

	dir.delay = time.Second
	_, err := svc.Login(context.Background(), "alice", "secret1-long")
	if !errors.Is(err, ErrDirectoryUnavailable) {
		t.Errorf("Login() with slow directory error = %v, want ErrDirectoryUnavailable", err)
	}
	if errors.Is(err, ErrInvalidCredentials) {
		t.Error("timeout must not be reported as invalid credentials")
	}

	dir.delay = 0
	dir.failErr = errors.New("connection refused")
	if _, err := svc.Login(context.Background(), "alice", "secret1-long"); !errors.Is(err, ErrDirectoryUnavailable) {
		t.Errorf("Login() with failing directory error = %v, want ErrDirectoryUnavailable", err)
	}
}

func TestLogin_TransparentRehash(t *testing.T) {
	dir := newMemDirectory()
	hasher, err := NewHasher(HasherConfig{Algorithm: AlgorithmBcrypt, BcryptCost: bcrypt.MinCost + 1})
	if err != nil {
		t.Fatalf("NewHasher() error = %v", err)
	}
	svc := testService(t, dir, func(c *ServiceConfig) { c.Hasher = hasher })

	weak, err := bcrypt.GenerateFromPassword([]byte("secret1-long"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("GenerateFromPassword() error = %v", err)
	}
	u := &User{ID: "usr-rehash", Username: "legacy", Email: "legacy@example.com", PasswordHash: string(weak)}
	dir.put(u)

	if _, err := svc.Login(context.Background(), "legacy", "secret1-long"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	stored := dir.stored("usr-rehash")
	if stored.PasswordHash == string(weak) {
		t.Fatal("stored hash should have been upgraded")
	}
	if cost, _ := bcrypt.Cost([]byte(stored.PasswordHash)); cost != bcrypt.MinCost+1 {
		t.Errorf("rehash cost = %d, want %d", cost, bcrypt.MinCost+1)
	}
	if !VerifyPassword("secret1-long", stored.PasswordHash) {
		t.Error("upgraded hash should verify")
	}

	// A second login finds the hash current and leaves it alone.
	if _, err := svc.Login(context.Background(), "legacy", "secret1-long"); err != nil {
		t.Fatalf("second Login() error = %v", err)
	}
	if dir.updates != 1 {
		t.Errorf("UpdatePassword called %d times, want 1", dir.updates)
	}
}

func TestRefresh_IssuesAccessForLiveIdentity(t *testing.T) {
	dir := newMemDirectory()
	svc := testService(t, dir)
	alice := seedTestUser(t, dir, svc.hasher, "alice", "secret1-long", RankStandard)

	session, err := svc.Login(context.Background(), "alice", "secret1-long")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	dir.setRank(alice.ID, RankAdmin)

	access, user, err := svc.Refresh(context.Background(), session.Refresh.Token)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if user.ID != alice.ID {
		t.Errorf("Refresh() user = %q, want %q", user.ID, alice.ID)
	}

	claims, err := svc.Verifier().VerifyAccess(access.Token)
	if err != nil {
		t.Fatalf("VerifyAccess() error = %v", err)
	}
	if claims.RankValue() != RankAdmin {
		t.Errorf("refreshed rank = %d, want live rank %d", claims.RankValue(), RankAdmin)
	}
}

func TestRefresh_Missing(t *testing.T) {
	svc := testService(t, newMemDirectory())

	if _, _, err := svc.Refresh(context.Background(), ""); !errors.Is(err, ErrRefreshTokenMissing) {
		t.Errorf("Refresh(\"\") error = %v, want ErrRefreshTokenMissing", err)
	}
}

func TestRefresh_Expired(t *testing.T) {
	dir := newMemDirectory()
	svc := testService(t, dir)
	alice := seedTestUser(t, dir, svc.hasher, "alice", "secret1-long", RankStandard)

	expired, err := NewIssuer(testCodec(t), time.Minute, -time.Second).IssueRefresh(alice.ID)
	if err != nil {
		t.Fatalf("IssueRefresh() error = %v", err)
	}

	if _, _, err := svc.Refresh(context.Background(), expired.Token); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("Refresh(expired) error = %v, want ErrTokenExpired", err)
	}
}

func TestRefresh_SubjectDeleted(t *testing.T) {
	dir := newMemDirectory()
	svc := testService(t, dir)
	alice := seedTestUser(t, dir, svc.hasher, "alice", "secret1-long", RankStandard)

	session, err := svc.Login(context.Background(), "alice", "secret1-long")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	dir.remove(alice.ID)

	if _, _, err := svc.Refresh(context.Background(), session.Refresh.Token); !errors.Is(err, ErrSubjectNotFound) {
		t.Errorf("Refresh() after delete error = %v, want ErrSubjectNotFound", err)
	}
}

func TestRefresh_RejectsTamperedAndWrongKind(t *testing.T) {
	dir := newMemDirectory()
	svc := testService(t, dir)
	seedTestUser(t, dir, svc.hasher, "alice", "secret1-long", RankStandard)

	session, err := svc.Login(context.Background(), "alice", "secret1-long")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	if _, _, err := svc.Refresh(context.Background(), tamperSignature(session.Refresh.Token)); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("Refresh(tampered) error = %v, want ErrInvalidSignature", err)
	}
	if _, _, err := svc.Refresh(context.Background(), session.Access.Token); !errors.Is(err, ErrTokenMalformed) {
		t.Errorf("Refresh(access token) error = %v, want ErrTokenMalformed", err)
	}
}

func TestCurrentIdentity(t *testing.T) {
	dir := newMemDirectory()
	svc := testService(t, dir)
	alice := seedTestUser(t, dir, svc.hasher, "alice", "secret1-long", RankStandard)

	session, err := svc.Login(context.Background(), "alice", "secret1-long")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	user, err := svc.CurrentIdentity(context.Background(), session.Access.Token)
	if err != nil {
		t.Fatalf("CurrentIdentity() error = %v", err)
	}
	if user.ID != alice.ID || user.Username != "alice" {
		t.Errorf("CurrentIdentity() = %+v, want alice", user)
	}

	expired, err := NewIssuer(testCodec(t), -time.Second, time.Hour).IssueAccess(alice.ID, RankStandard)
	if err != nil {
		t.Fatalf("IssueAccess() error = %v", err)
	}

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{"empty", "", ErrUnauthenticated},
		{"garbage", "garbage", ErrTokenMalformed},
		{"expired", expired.Token, ErrTokenExpired},
		{"tampered", tamperSignature(session.Access.Token), ErrInvalidSignature},
		{"refresh token", session.Refresh.Token, ErrTokenMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CurrentIdentity(context.Background(), tt.token)
			if !errors.Is(err, ErrUnauthenticated) {
				t.Errorf("error = %v, want ErrUnauthenticated", err)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want chain to include %v", err, tt.wantErr)
			}
		})
	}

	dir.remove(alice.ID)
	if _, err := svc.CurrentIdentity(context.Background(), session.Access.Token); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("CurrentIdentity() after delete error = %v, want ErrUnauthenticated", err)
	}
}

func TestLogout_ClearsWithSameAttributes(t *testing.T) {
	dir := newMemDirectory()
	svc := testService(t, dir)
	seedTestUser(t, dir, svc.hasher, "alice", "secret1-long", RankStandard)

	session, err := svc.Login(context.Background(), "alice", "secret1-long")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	set, cleared := session.RefreshCookie, svc.Logout()

	if cleared.Name != set.Name || cleared.Path != set.Path ||
		cleared.Secure != set.Secure || cleared.SameSite != set.SameSite ||
		cleared.HttpOnly != set.HttpOnly || cleared.Domain != set.Domain {
		t.Errorf("clearing cookie %+v does not match issued cookie %+v", cleared, set)
	}
	if cleared.MaxAge >= 0 {
		t.Errorf("clearing cookie MaxAge = %d, want negative", cleared.MaxAge)
	}
	if cleared.Value != "" {
		t.Errorf("clearing cookie Value = %q, want empty", cleared.Value)
	}
}
