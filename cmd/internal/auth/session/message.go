package session

import (
	"errors"
	"strings"

	"github.com/EvertonHSP/Nuvem/cmd/internal/auth/remote"
)

// UserMessage turns an error from a Manager operation into a message fit to
// show the user. A wrong code gets its own message; unknown failures get a
// generic one.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrWrongCode):
		return "Código de verificação inválido"
	case errors.Is(err, ErrInvalidChallenge):
		return "Código expirado ou não encontrado. Solicite um novo código."
	case errors.Is(err, ErrInvalidCredentials):
		return "Credenciais inválidas"
	case errors.Is(err, ErrThrottled):
		return "Muitas tentativas. Aguarde alguns minutos e tente novamente."
	case errors.Is(err, ErrAlreadyAuthenticated):
		return "Já existe uma sessão ativa neste dispositivo"
	case errors.Is(err, ErrInvalidInput):
		return "Verifique os dados informados"
	case errors.Is(err, ErrNotReady):
		return "Inicializando, tente novamente em instantes"
	case errors.Is(err, ErrUnauthorized):
		return "Sessão expirada ou inválida"
	case errors.Is(err, ErrNetwork):
		return "Sem resposta do servidor"
	case errors.Is(err, ErrRequest):
		return "Erro ao configurar requisição"
	case errors.Is(err, ErrMalformedResponse):
		return "Resposta da API inválida"
	case errors.Is(err, ErrStorage), errors.Is(err, ErrEncryption):
		return "Não foi possível salvar a sessão neste dispositivo"
	}

	if ae, ok := remote.AsAPIError(err); ok && strings.TrimSpace(ae.Message) != "" {
		return ae.Message
	}
	return "Erro na requisição"
}
