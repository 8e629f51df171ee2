package main

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"postly/internal/apitest"
	"postly/internal/domain"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	var out bytes.Buffer
	cmd := newRootCommand(logger)
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func setupCLI(t *testing.T) *apitest.Server {
	t.Helper()
	srv := apitest.NewServer()
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("POSTLY_API_BASEURL", srv.URL)
	t.Setenv("POSTLY_STORAGE_DRIVER", "file")
	t.Setenv("POSTLY_STORAGE_DIR", dir)
	t.Setenv("POSTLY_SEARCH_DEBOUNCE", "0s")
	return srv
}

func TestCLIProfessorFlow(t *testing.T) {
	srv := setupCLI(t)
	srv.AddUser("Ana", "a@b.com", "Secret1!", domain.RoleProfessor)

	if _, err := execute(t, "feed"); err == nil || !strings.Contains(err.Error(), "/login") {
		t.Fatalf("feed without session should redirect to login, got %v", err)
	}

	out, err := execute(t, "login", "-e", "a@b.com", "-p", "Secret1!")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if !strings.Contains(out, "Logged in as Ana (PROFESSOR)") {
		t.Fatalf("unexpected output %q", out)
	}
	if _, err := execute(t, "login", "-e", "a@b.com", "-p", "Secret1!"); err == nil || !strings.Contains(err.Error(), "already logged in as a@b.com") {
		t.Fatalf("second login should be refused, got %v", err)
	}

	out, err = execute(t, "whoami")
	if err != nil {
		t.Fatalf("whoami: %v", err)
	}
	if !strings.Contains(out, "a@b.com") || !strings.Contains(out, "valid until") {
		t.Fatalf("unexpected whoami %q", out)
	}

	if _, err := execute(t, "post", "create", "-t", "ab", "-c", "long enough content"); err == nil {
		t.Fatal("short title accepted")
	}
	if _, err := execute(t, "post", "create", "-t", "Exam", "-c", "Chapters 1 to 4"); err != nil {
		t.Fatalf("post create: %v", err)
	}

	out, err = execute(t, "feed", "--term", "exam")
	if err != nil {
		t.Fatalf("feed: %v", err)
	}
	if !strings.Contains(out, "Exam") || !strings.Contains(out, "page 1 of 1 (1 posts)") {
		t.Fatalf("unexpected feed %q", out)
	}
	if _, err := execute(t, "feed", "--page", "4"); err == nil {
		t.Fatal("page out of range accepted")
	}

	if _, err := execute(t, "logout"); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := execute(t, "whoami"); err == nil {
		t.Fatal("whoami after logout should fail")
	}
}

func TestCLIStudentRestrictions(t *testing.T) {
	srv := setupCLI(t)
	srv.AddUser("Bo", "bo@b.com", "Secret1!", domain.RoleStudent)

	if _, err := execute(t, "login", "-e", "bo@b.com", "-p", "Secret1!"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := execute(t, "users"); err == nil || !strings.Contains(err.Error(), "/feed") {
		t.Fatalf("student listed users: %v", err)
	}
	if _, err := execute(t, "password", "-p", "Secret2!", "--confirm", "Secret2!"); err == nil {
		t.Fatal("student changed password")
	}
}

func TestTokenExpiry(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()
	user := srv.AddUser("Ana", "a@b.com", "Secret1!", domain.RoleProfessor)

	exp, err := tokenExpiry(srv.Token(user))
	if err != nil {
		t.Fatalf("expiry: %v", err)
	}
	if d := time.Until(exp); d <= 0 || d > apitest.TokenTTL {
		t.Fatalf("unexpected expiry %v", exp)
	}

	if _, err := tokenExpiry("tok"); err == nil {
		t.Fatal("opaque token parsed")
	}
}
