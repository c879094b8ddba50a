package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"care-relay/internal/client"
	"care-relay/internal/domain"
)

func main() {
	_ = godotenv.Load()

	relayURL := flag.String("url", envOr("RELAY_URL", "http://localhost:4000"), "URL base del relay")
	token := flag.String("token", os.Getenv("RELAY_TOKEN"), "token de sesión")
	patients := flag.String("patients", "", "pacientes a seguir, separados por coma")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := zap.NewExample()
	defer logger.Sync()

	buffer := client.NewNotificationBuffer(client.DefaultBufferSize)
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	c, err := client.Dial(dialCtx, logger, *relayURL, *token, buffer)
	cancel()
	if err != nil {
		log.Fatalf("conectar: %v", err)
	}
	defer c.Close()

	for _, p := range strings.Split(*patients, ",") {
		if p = strings.TrimSpace(p); p != "" {
			if err := c.Join(p); err != nil {
				log.Fatalf("join %s: %v", p, err)
			}
		}
	}

	go func() {
		err := c.Listen(ctx, printNotification, func(p domain.ErrorPayload) {
			fmt.Printf("! error: %s %s\n", p.Message, p.Field)
		})
		if err != nil {
			fmt.Printf("conexión cerrada: %v\n", err)
		}
		stop()
	}()

	fmt.Println("===== Panel del cuidador =====")
	fmt.Println("Comandos: lista | join <paciente> | sos <paciente> | salir")

	lines := make(chan string)
	go func() {
		reader := bufio.NewScanner(os.Stdin)
		for reader.Scan() {
			lines <- reader.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if !handleCommand(c, buffer, strings.Fields(line)) {
				return
			}
		}
	}
}

func handleCommand(c *client.Client, buffer *client.NotificationBuffer, args []string) bool {
	if len(args) == 0 {
		return true
	}
	switch args[0] {
	case "salir", "exit":
		return false
	case "lista":
		list := buffer.List()
		if len(list) == 0 {
			fmt.Println("Sin notificaciones.")
		}
		for _, n := range list {
			printNotification(n)
		}
	case "join":
		if len(args) < 2 {
			fmt.Println("Uso: join <paciente>")
			return true
		}
		if err := c.Join(args[1]); err != nil {
			fmt.Printf("join: %v\n", err)
		}
	case "sos":
		if len(args) < 2 {
			fmt.Println("Uso: sos <paciente>")
			return true
		}
		now := time.Now().UTC()
		if err := c.Emit(string(domain.RawSOSAlert), domain.SOSAlert{PatientID: args[1], Time: &now}); err != nil {
			fmt.Printf("sos: %v\n", err)
		}
	default:
		fmt.Println("Comando desconocido.")
	}
	return true
}

func printNotification(n domain.Notification) {
	ts := n.OccurredAt.Local().Format("15:04:05")
	switch p := n.Payload.(type) {
	case domain.EmotionPayload:
		fmt.Printf("[%s] %s emoción %s (%.0f%%) riesgo %s\n", ts, n.PatientID, p.Expression, p.Confidence*100, p.Risk)
	case domain.UnknownFacePayload:
		fmt.Printf("[%s] %s rostro desconocido: %s\n", ts, n.PatientID, p.Info)
	case domain.SOSPayload:
		where := "sin ubicación"
		if p.Location != nil {
			where = fmt.Sprintf("%.5f,%.5f", p.Location.Lat, p.Location.Lon)
		}
		fmt.Printf("[%s] %s SOS (%s)\n", ts, n.PatientID, where)
	case domain.ReminderMissedPayload:
		fmt.Printf("[%s] %s no tomó %s (programado %s)\n", ts, n.PatientID, p.Medication, p.ScheduledTime.Local().Format("15:04"))
	default:
		fmt.Printf("[%s] %s %s\n", ts, n.PatientID, n.Kind)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
