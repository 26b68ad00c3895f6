// gamewatch - multi-game server monitoring daemon
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	flag "github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/pmills/gamewatch/internal/api"
	"github.com/pmills/gamewatch/internal/auth"
	"github.com/pmills/gamewatch/internal/collector"
	"github.com/pmills/gamewatch/internal/config"
	"github.com/pmills/gamewatch/internal/storage"
)

var version = "dev"

const defaultConfigPath = "/etc/gamewatch/config.yml"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		cmdServe(os.Args[2:])
	case "status":
		cmdStatus(os.Args[2:])
	case "players":
		cmdPlayers(os.Args[2:])
	case "playtime":
		cmdPlaytime(os.Args[2:])
	case "rcon":
		cmdRcon(os.Args[2:])
	case "token":
		cmdToken(os.Args[2:])
	case "version":
		fmt.Printf("gamewatch %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: gamewatch <command> [options] [args]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve                        Start the monitoring daemon")
	fmt.Println("  status                       Show all game servers status")
	fmt.Println("  players [game]               Show current players (all games by default)")
	fmt.Println("  playtime <game>              Show the playtime ledger for a game")
	fmt.Println("  rcon <game> <command...>     Send a raw RCON command (requires token)")
	fmt.Println("  token                        Mint an operator token (prompts for password)")
	fmt.Println("  token --new-hash             Generate an operator password hash for the config")
	fmt.Println("  version                      Show version")
	fmt.Println("  help                         Show this help")
	fmt.Println()
	fmt.Println("Global Options:")
	fmt.Println("  --config <path>    Path to configuration file (default /etc/gamewatch/config.yml)")
	fmt.Println("  --url <url>        Base URL of the gamewatch daemon (default: derived from config)")
}

// cmdServe starts the monitoring daemon
func cmdServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	fs.Parse(args)

	cfgPath := *configPath
	if cfgPath == "" {
		if _, err := os.Stat(defaultConfigPath); err == nil {
			cfgPath = defaultConfigPath
		} else {
			log.Fatalf("No config file found at %s. Use --config to specify a config file.", defaultConfigPath)
		}
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Printf("Gamewatch %s starting...", version)

	store, err := storage.New(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()
	log.Printf("Database initialized at %s", cfg.Database.Path)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	monitor := collector.NewMonitor(cfg, store)
	monitor.Start(ctx)

	scheduler := collector.NewScheduler(cfg.Schedule, monitor, monitor.Publish)
	scheduler.Start(ctx)
	if len(cfg.Schedule) > 0 {
		log.Printf("Scheduler armed with %d events", len(cfg.Schedule))
	}

	authService := auth.NewService(cfg.Auth.JWTSecret, cfg.Auth.TokenDuration)
	if cfg.Auth.JWTSecret == "" {
		log.Printf("Warning: No JWT secret configured. Auth tokens will use an empty secret.")
	}

	router := api.NewRouter(store, monitor, authService, cfg.Auth.OperatorHash)
	router.StartWebSocketHub()

	addr := fmt.Sprintf("%s:%d", cfg.Server.ListenAddr, cfg.Server.HTTPPort)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		log.Printf("HTTP server listening on %s", addr)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case sig := <-sigCh:
		log.Printf("Received signal %v, shutting down...", sig)
	case err := <-serverErr:
		log.Fatalf("HTTP server error: %v", err)
	}

	// Sequential shutdown: stop accepting requests first, then stop the
	// periodic work so in-flight RCON calls can finish
	log.Println("Shutting down HTTP server...")
	httpCtx, httpCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer httpCancel()
	if err := server.Shutdown(httpCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	if len(cfg.Schedule) > 0 {
		scheduler.Stop()
	}
	monitor.Stop()

	cancel()
	log.Println("Shutdown complete")
}

// CLI helper variables
var baseURL = "http://localhost:8080"

// loadCLIConfigFromFlags loads config using pre-parsed flag values
func loadCLIConfigFromFlags(configPath, url string) *config.Config {
	cfg, err := config.Load(configPath)
	if err != nil {
		if url != "" {
			baseURL = url
		}
		return nil
	}

	if url != "" {
		baseURL = url
	} else {
		baseURL = fmt.Sprintf("http://%s:%d", cfg.Server.ListenAddr, cfg.Server.HTTPPort)
	}
	return cfg
}

func cmdStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "path to configuration file")
	url := fs.String("url", "", "base URL of the gamewatch daemon")
	fs.Parse(args)

	loadCLIConfigFromFlags(*configPath, *url)

	var statuses []map[string]interface{}
	if err := getJSON("/api/games", &statuses); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "GAME\tSTATUS\tPLAYERS\tLAST UPDATED")
	fmt.Fprintln(w, "----\t------\t-------\t------------")

	for _, status := range statuses {
		game := status["game"].(string)

		statusStr := "OFFLINE"
		if online, ok := status["online"].(bool); ok && online {
			statusStr = "ONLINE"
		}

		players := 0
		if p, ok := status["players"].([]interface{}); ok {
			players = len(p)
		}

		updated := "-"
		if u, ok := status["last_updated"].(string); ok {
			updated = formatTime(u)
		}

		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", game, statusStr, players, updated)
	}

	w.Flush()
}

func cmdPlayers(args []string) {
	fs := flag.NewFlagSet("players", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "path to configuration file")
	url := fs.String("url", "", "base URL of the gamewatch daemon")
	fs.Parse(args)

	loadCLIConfigFromFlags(*configPath, *url)

	games := fs.Args()
	if len(games) == 0 {
		var statuses []map[string]interface{}
		if err := getJSON("/api/games", &statuses); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		for _, status := range statuses {
			games = append(games, status["game"].(string))
		}
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "GAME\tPLAYER\tSESSION")
	fmt.Fprintln(w, "----\t------\t-------")

	for _, game := range games {
		var response map[string]interface{}
		if err := getJSON(fmt.Sprintf("/api/games/%s/players", game), &response); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %s: %v\n", game, err)
			continue
		}

		players, ok := response["players"].([]interface{})
		if !ok {
			continue
		}
		for _, player := range players {
			pm, ok := player.(map[string]interface{})
			if !ok {
				continue
			}
			session := "-"
			if secs, ok := pm["session_seconds"].(float64); ok && secs > 0 {
				session = formatSeconds(int64(secs))
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", game, pm["name"], session)
		}
	}

	w.Flush()
}

func cmdPlaytime(args []string) {
	fs := flag.NewFlagSet("playtime", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "path to configuration file")
	url := fs.String("url", "", "base URL of the gamewatch daemon")
	fs.Parse(args)

	loadCLIConfigFromFlags(*configPath, *url)

	remaining := fs.Args()
	if len(remaining) < 1 {
		fmt.Fprintf(os.Stderr, "Usage: gamewatch playtime <game>\n")
		os.Exit(1)
	}
	game := remaining[0]

	var entries []map[string]interface{}
	if err := getJSON(fmt.Sprintf("/api/games/%s/playtime", game), &entries); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if len(entries) == 0 {
		fmt.Printf("No playtime recorded for %s\n", game)
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PLAYER\tFIRST SEEN\tPLAYTIME")
	fmt.Fprintln(w, "------\t----------\t--------")

	for _, entry := range entries {
		firstSeen := "-"
		if s, ok := entry["first_seen"].(string); ok {
			firstSeen = formatTime(s)
		}
		total := int64(entry["total_seconds"].(float64))
		fmt.Fprintf(w, "%s\t%s\t%s\n", entry["player"], firstSeen, formatSeconds(total))
	}

	w.Flush()
}

func cmdRcon(args []string) {
	fs := flag.NewFlagSet("rcon", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "path to configuration file")
	url := fs.String("url", "", "base URL of the gamewatch daemon")
	token := fs.String("token", "", "operator token (defaults to $GAMEWATCH_TOKEN)")
	fs.Parse(args)

	loadCLIConfigFromFlags(*configPath, *url)

	remaining := fs.Args()
	if len(remaining) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: gamewatch rcon <game> <command...>\n")
		os.Exit(1)
	}
	game := remaining[0]
	command := ""
	for i, arg := range remaining[1:] {
		if i > 0 {
			command += " "
		}
		command += arg
	}

	authToken := *token
	if authToken == "" {
		authToken = os.Getenv("GAMEWATCH_TOKEN")
	}
	if authToken == "" {
		fmt.Fprintf(os.Stderr, "Error: no token. Use --token or set GAMEWATCH_TOKEN (see: gamewatch token)\n")
		os.Exit(1)
	}

	var response map[string]interface{}
	path := fmt.Sprintf("/api/games/%s/rcon", game)
	if err := postJSON(path, authToken, map[string]string{"command": command}, &response); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if output, ok := response["output"].(string); ok && output != "" {
		fmt.Println(output)
	}
}

// cmdToken mints an operator token, or generates a password hash for the config
func cmdToken(args []string) {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "path to configuration file")
	newHash := fs.Bool("new-hash", false, "generate an operator password hash instead of a token")
	fs.Parse(args)

	password, err := readPassword("Operator password: ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *newHash {
		hash, err := auth.HashPassword(password)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(hash)
		fmt.Fprintln(os.Stderr, "Put this in auth.operator_hash in the config file.")
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if cfg.Auth.OperatorHash == "" {
		fmt.Fprintf(os.Stderr, "Error: no operator_hash in config. Generate one with: gamewatch token --new-hash\n")
		os.Exit(1)
	}
	if !auth.CheckPassword(password, cfg.Auth.OperatorHash) {
		fmt.Fprintf(os.Stderr, "Error: invalid operator password\n")
		os.Exit(1)
	}

	token, err := auth.NewService(cfg.Auth.JWTSecret, cfg.Auth.TokenDuration).GenerateToken("operator")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}

// readPassword prompts on the terminal without echo, falling back to a
// plain line read when stdin is not a TTY
func readPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	if term.IsTerminal(int(os.Stdin.Fd())) {
		password, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		return string(password), err
	}

	var password string
	_, err := fmt.Fscanln(os.Stdin, &password)
	return password, err
}

func getJSON(path string, target interface{}) error {
	resp, err := http.Get(baseURL + path)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(body))
	}

	return json.NewDecoder(resp.Body).Decode(target)
}

func postJSON(path, token string, payload, target interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequest("POST", baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(body))
	}

	return json.NewDecoder(resp.Body).Decode(target)
}

func formatTime(isoTime string) string {
	t, err := time.Parse(time.RFC3339, isoTime)
	if err != nil {
		return isoTime
	}
	return t.Format("2006-01-02 15:04")
}

// formatSeconds renders a duration like "3h25m" or "45s"
func formatSeconds(seconds int64) string {
	d := time.Duration(seconds) * time.Second
	if d < time.Minute {
		return fmt.Sprintf("%ds", seconds)
	}
	d = d.Round(time.Minute)
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	if h > 0 {
		return fmt.Sprintf("%dh%02dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
