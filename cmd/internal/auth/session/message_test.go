package session

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/EvertonHSP/Nuvem/cmd/internal/auth/remote"
	"github.com/EvertonHSP/Nuvem/cmd/internal/auth/store"
)

func TestUserMessage(t *testing.T) {
	t.Parallel()

	wrongCode := &remote.APIError{Op: "remote.verify_login", Status: 400, Code: remote.CodeInvalidCode, Message: "Código 2FA inválido ou expirado"}

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"wrong code", classifyVerify(wrongCode), "Código de verificação inválido"},
		{"challenge", ErrInvalidChallenge, "Código expirado ou não encontrado. Solicite um novo código."},
		{"credentials", fmt.Errorf("%w: x", ErrInvalidCredentials), "Credenciais inválidas"},
		{"network", remote.OpError{Op: "remote.login", Kind: remote.ErrNetwork}, "Sem resposta do servidor"},
		{"request", remote.OpError{Op: "remote.login", Kind: remote.ErrRequest}, "Erro ao configurar requisição"},
		{"malformed", remote.OpError{Op: "remote.login", Kind: remote.ErrMalformedResponse}, "Resposta da API inválida"},
		{"storage", store.OpError{Op: "store.Save", Kind: store.ErrStorage}, "Não foi possível salvar a sessão neste dispositivo"},
		{"api message", &remote.APIError{Op: "remote.register", Status: 400, Message: "E-mail já registrado e verificado"}, "E-mail já registrado e verificado"},
		{"api without message", &remote.APIError{Op: "remote.register", Status: 502}, "Erro na requisição"},
		{"unknown", errors.New("boom"), "Erro na requisição"},
	}
	for _, tt := range tests {
		if got := UserMessage(tt.err); got != tt.want {
			t.Fatalf("%s: UserMessage = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestClassifyVerify(t *testing.T) {
	t.Parallel()

	notFound := &remote.APIError{Op: "remote.verify_register", Status: 404, Code: remote.CodeChallengeNotFound}
	if err := classifyVerify(notFound); !errors.Is(err, ErrInvalidChallenge) {
		t.Fatalf("challenge_not_found -> %v", err)
	}
	other := &remote.APIError{Op: "remote.verify_login", Status: 404, Message: "Usuário não encontrado"}
	if err := classifyVerify(other); errors.Is(err, ErrWrongCode) || errors.Is(err, ErrInvalidChallenge) {
		t.Fatalf("unrelated api error classified: %v", err)
	}

	te := ThrottledError{RetryAfter: 90 * time.Second}
	if te.Error() != "too many code requests: retry after 1m30s" {
		t.Fatalf("ThrottledError = %q", te.Error())
	}
}
