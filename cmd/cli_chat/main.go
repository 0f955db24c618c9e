package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"streamchat/internal/app"
	"streamchat/internal/config"
	"streamchat/internal/domain"
	"streamchat/internal/repository"
	"streamchat/internal/service"
	"streamchat/internal/stream"
)

const cliEmail = "cli_test@example.com"

func main() {
	ctx := context.Background()
	reader := bufio.NewReader(os.Stdin)

	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := zap.NewNop()
	if os.Getenv("CLI_DEBUG") != "" {
		logger, _ = zap.NewDevelopment()
	}
	defer logger.Sync()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		log.Fatal(err)
	}
	defer a.Close()

	user, err := ensureUser(ctx, a.Users, cliEmail)
	if err != nil {
		log.Fatal(err)
	}
	ctx = service.ContextWithClaims(ctx, service.Claims{
		UserID:      user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
	})

	s := &cliSession{
		actions: a.Actions,
		reader:  reader,
		user:    user,
		model:   string(a.Models.Default()),
	}
	if err := s.loop(ctx); err != nil {
		log.Fatal(err)
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = a.Drain(drainCtx)
}

type cliSession struct {
	actions *service.ChatActions
	reader  *bufio.Reader
	user    domain.User
	model   string
	chatID  string
}

func (s *cliSession) loop(ctx context.Context) error {
	fmt.Println("---- Chat (/help para ver comandos) ----")
	for {
		fmt.Print("Tu > ")
		text, err := s.reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("leer input: %w", err)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		if strings.HasPrefix(text, "/") || strings.EqualFold(text, "salir") {
			if done := s.command(ctx, text); done {
				return nil
			}
			continue
		}
		s.send(ctx, text)
	}
}

// command ejecuta un comando de la sesion. Devuelve true para salir.
func (s *cliSession) command(ctx context.Context, line string) bool {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(name) {
	case "/exit", "salir":
		fmt.Println("Saliendo del chat...")
		return true
	case "/help":
		fmt.Println("/new  /open <chat_id>  /history  /reset  /chats  /delete  /model <fast-general|premium-reasoning>  /exit")
	case "/new":
		s.chatID = ""
		fmt.Println("Nuevo chat.")
	case "/open":
		if arg == "" {
			fmt.Println("uso: /open <chat_id>")
			return false
		}
		s.chatID = arg
		s.printHistory(ctx)
	case "/history":
		s.printHistory(ctx)
	case "/reset":
		if s.chatID == "" {
			fmt.Println("No hay chat activo.")
			return false
		}
		res := s.actions.Reset(ctx, s.chatID)
		fmt.Println(res.Message)
	case "/chats":
		chats, err := s.actions.ListChats(ctx)
		if err != nil {
			fmt.Printf("error listando chats: %v\n", err)
			return false
		}
		if len(chats) == 0 {
			fmt.Println("No hay chats guardados.")
		}
		for _, c := range chats {
			fmt.Printf("  %s  %s  %s\n", c.ID, c.UpdatedAt.Local().Format("02-01-2006 15:04"), c.Title)
		}
	case "/delete":
		if s.chatID == "" {
			fmt.Println("No hay chat activo.")
			return false
		}
		if err := s.actions.DeleteChat(ctx, s.chatID); err != nil {
			fmt.Printf("error borrando chat: %v\n", err)
			return false
		}
		fmt.Printf("Chat %s borrado.\n", s.chatID)
		s.chatID = ""
	case "/model":
		if arg == "" {
			fmt.Printf("modelo actual: %s\n", s.model)
			return false
		}
		s.model = arg
		fmt.Printf("modelo: %s\n", s.model)
	default:
		fmt.Println("comando desconocido, /help para ver comandos")
	}
	return false
}

func (s *cliSession) send(ctx context.Context, text string) {
	res, handle, err := s.actions.Submit(ctx, text, s.model, s.chatID)
	if err != nil {
		fmt.Println(res.Message)
		return
	}
	s.chatID = res.ChatID

	updates, cancel := handle.Subscribe()
	defer cancel()

	printed := ""
	for u := range updates {
		switch u.Kind {
		case stream.KindProgress:
			fmt.Printf("  ... %s\n", u.Text)
		case stream.KindContent, stream.KindDone:
			if printed == "" {
				fmt.Print("IA > ")
			}
			if strings.HasPrefix(u.Text, printed) {
				fmt.Print(u.Text[len(printed):])
			} else {
				fmt.Print("\n" + u.Text)
			}
			printed = u.Text
		case stream.KindError:
			fmt.Printf("\nerror: %s", u.Text)
		}
		if u.Final() {
			fmt.Println()
		}
	}
}

func (s *cliSession) printHistory(ctx context.Context) {
	if s.chatID == "" {
		fmt.Println("No hay chat activo.")
		return
	}
	hist := s.actions.LoadHistory(ctx, s.user.DisplayName, s.chatID)
	if len(hist.UIMessages) == 0 {
		fmt.Println("(sin mensajes)")
		return
	}
	if hist.CreatedAt != "" {
		fmt.Printf("chat %s, creado %s, actualizado %s\n", hist.ChatID, hist.CreatedAt, hist.UpdatedAt)
	}
	for _, m := range hist.UIMessages {
		who := "IA"
		if m.Role == domain.RoleUser {
			who = "Tu"
		}
		fmt.Printf("%s > %s\n", who, m.Content)
	}
}

// ensureUser da de alta al usuario de la CLI en el directorio si existe; si no, lo arma localmente.
func ensureUser(ctx context.Context, users repository.UserRepository, email string) (domain.User, error) {
	u := domain.User{
		ID:          uuid.NewSHA1(uuid.NameSpaceURL, []byte("mailto:"+email)).String(),
		Email:       email,
		DisplayName: "CLI",
		CreatedAt:   time.Now().UTC(),
	}
	if users == nil {
		return u, nil
	}

	existing, err := users.GetByID(ctx, u.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return domain.User{}, err
	}
	if err := users.Create(ctx, u); err != nil {
		return domain.User{}, err
	}
	return u, nil
}
