package form

import (
	"errors"
	"testing"
)

func fieldError(t *testing.T, err error) *Error {
	t.Helper()
	var fe *Error
	if !errors.As(err, &fe) {
		t.Fatalf("expected *form.Error, got %v", err)
	}
	return fe
}

func TestValidatorRegistersCustomTags(t *testing.T) {
	v, err := newValidator()
	if err != nil {
		t.Fatalf("new validator: %v", err)
	}
	if err := v.Var("  abcd  ", "trimmedmin=4"); err != nil {
		t.Fatalf("trimmedmin: %v", err)
	}
	if err := v.Var("Secret1!", "strongpassword"); err != nil {
		t.Fatalf("strongpassword: %v", err)
	}
	if err := v.Var("secret", "strongpassword"); err == nil {
		t.Fatal("weak password accepted")
	}
}

func TestPostValidation(t *testing.T) {
	tests := []struct {
		name  string
		form  Post
		field string
		tag   string
	}{
		{"short title", Post{Title: "ab", Content: "long enough content"}, "title", "trimmedmin"},
		{"padded title", Post{Title: "  ab  ", Content: "long enough content"}, "title", "trimmedmin"},
		{"short content", Post{Title: "Exam", Content: "too short"}, "content", "trimmedmin"},
		{"missing before short", Post{Title: "ab"}, "content", "required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fe := fieldError(t, Validate(tt.form))
			if fe.Field != tt.field || fe.Tag != tt.tag {
				t.Fatalf("got %s/%s, want %s/%s", fe.Field, fe.Tag, tt.field, tt.tag)
			}
		})
	}

	if err := Validate(Post{Title: "Exam", Content: "Chapters 1 to 4"}); err != nil {
		t.Fatalf("valid post rejected: %v", err)
	}
}

func TestPostValidationMessage(t *testing.T) {
	fe := fieldError(t, Validate(Post{Title: "ab", Content: "long enough content"}))
	if fe.Message != "The field 'title' must be at least 3 characters long." {
		t.Fatalf("unexpected message %q", fe.Message)
	}
	if fe.Missing() {
		t.Fatal("length failure is not a missing field")
	}
}

func TestLoginRequiresBothFields(t *testing.T) {
	fe := fieldError(t, Validate(Login{Email: "a@b.com"}))
	if !fe.Missing() || fe.Field != "password" {
		t.Fatalf("unexpected error %+v", fe)
	}
	if err := Validate(Login{Email: "a@b.com", Password: "Secret1!"}); err != nil {
		t.Fatalf("valid login rejected: %v", err)
	}
}

func TestPasswordValidation(t *testing.T) {
	tests := []struct {
		name string
		form Password
		tag  string
	}{
		{"no uppercase", Password{Password: "secret1!", Confirm: "secret1!"}, "strongpassword"},
		{"no digit", Password{Password: "Secret!!", Confirm: "Secret!!"}, "strongpassword"},
		{"no special", Password{Password: "Secret11", Confirm: "Secret11"}, "strongpassword"},
		{"mismatch", Password{Password: "Secret1!", Confirm: "Secret1?"}, "eqfield"},
		{"missing confirm", Password{Password: "Secret1!"}, "required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fe := fieldError(t, Validate(tt.form))
			if fe.Tag != tt.tag {
				t.Fatalf("got tag %s, want %s (%s)", fe.Tag, tt.tag, fe.Message)
			}
		})
	}
	if err := Validate(Password{Password: "Secret1!", Confirm: "Secret1!"}); err != nil {
		t.Fatalf("strong password rejected: %v", err)
	}
}

func TestUserRoleValidation(t *testing.T) {
	fe := fieldError(t, Validate(NewUser{Name: "Ana", Email: "a@b.com", Password: "x", Role: "ADMIN"}))
	if fe.Field != "role" || fe.Tag != "oneof" {
		t.Fatalf("unexpected error %+v", fe)
	}
	if err := Validate(EditUser{Name: "Ana", Email: "a@b.com", Role: "PROFESSOR"}); err != nil {
		t.Fatalf("valid edit rejected: %v", err)
	}
}
