package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
)

type cliConfig struct {
	Endpoint string `json:"endpoint"`
	APIKey   string `json:"api_key"`
	Token    string `json:"token"`
}

type envelope struct {
	Ok    bool            `json:"ok"`
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
}

func usage() {
	fmt.Println("ncp commands:")
	fmt.Println("  config --endpoint URL [--api-key KEY]")
	fmt.Println("  login --email EMAIL --password PASSWORD")
	fmt.Println("  ping")
	fmt.Println("  containers [--all]")
	fmt.Println("  run --image IMAGE [--name NAME]")
	fmt.Println("  start|stop|restart|rm|stats --id ID")
	fmt.Println("  buckets")
	fmt.Println("  mkbucket --name NAME [--public]")
	fmt.Println("  rmbucket --id ID")
	fmt.Println("  put --bucket BUCKET --key KEY --file PATH [--public]")
	fmt.Println("  presign --bucket BUCKET --key KEY [--expiry SECONDS]")
	os.Exit(1)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}
	switch os.Args[1] {
	case "config":
		configCmd()
	case "login":
		loginCmd()
	case "ping":
		simpleGet("/ping")
	case "containers":
		containersCmd()
	case "run":
		runCmd()
	case "start", "stop", "restart":
		commandCmd(os.Args[1])
	case "rm":
		rmCmd()
	case "stats":
		statsCmd()
	case "buckets":
		simpleGet("/storage/buckets")
	case "mkbucket":
		mkbucketCmd()
	case "rmbucket":
		rmbucketCmd()
	case "put":
		putCmd()
	case "presign":
		presignCmd()
	default:
		usage()
	}
}

func configPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ncp"
	}
	return filepath.Join(home, ".ncp")
}

func loadConfig() cliConfig {
	cfg := cliConfig{Endpoint: "http://localhost:8080"}
	data, err := os.ReadFile(configPath())
	if err == nil {
		_ = json.Unmarshal(data, &cfg)
	}
	return cfg
}

func saveConfig(cfg cliConfig) {
	data, _ := json.MarshalIndent(cfg, "", "  ")
	if err := os.WriteFile(configPath(), data, 0o600); err != nil {
		fatal("write config: %v", err)
	}
}

func configCmd() {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	endpoint := fs.String("endpoint", "", "server base URL")
	apiKey := fs.String("api-key", "", "api key")
	fs.Parse(os.Args[2:])

	cfg := loadConfig()
	if *endpoint != "" {
		cfg.Endpoint = strings.TrimRight(*endpoint, "/")
	}
	if *apiKey != "" {
		cfg.APIKey = *apiKey
	}
	saveConfig(cfg)
	fmt.Println("saved", configPath())
}

func loginCmd() {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	fs.Parse(os.Args[2:])
	if *email == "" || *password == "" {
		fatal("email and password required")
	}

	data := request(http.MethodPost, "/auth/login", map[string]string{
		"email": *email, "password": *password,
	})
	var session struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(data, &session); err != nil {
		fatal("decode session: %v", err)
	}
	cfg := loadConfig()
	cfg.Token = session.Token
	saveConfig(cfg)
	fmt.Println("logged in")
}

func containersCmd() {
	fs := flag.NewFlagSet("containers", flag.ExitOnError)
	all := fs.Bool("all", false, "include stopped containers")
	fs.Parse(os.Args[2:])

	path := "/containers"
	if *all {
		path += "?all=true"
	}
	simpleGet(path)
}

func runCmd() {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	image := fs.String("image", "", "container image")
	name := fs.String("name", "", "container name")
	fs.Parse(os.Args[2:])
	if *image == "" {
		fatal("image required")
	}

	data := request(http.MethodPost, "/containers", map[string]string{
		"image": *image, "name": *name,
	})
	printJSON(data)
}

func commandCmd(verb string) {
	fs := flag.NewFlagSet(verb, flag.ExitOnError)
	id := fs.String("id", "", "container id")
	fs.Parse(os.Args[2:])
	if *id == "" {
		fatal("id required")
	}
	request(http.MethodPost, "/containers/"+url.PathEscape(*id)+"/"+verb, nil)
	fmt.Println("ok")
}

func rmCmd() {
	fs := flag.NewFlagSet("rm", flag.ExitOnError)
	id := fs.String("id", "", "container id")
	force := fs.Bool("force", false, "remove even if running")
	fs.Parse(os.Args[2:])
	if *id == "" {
		fatal("id required")
	}
	path := "/containers/" + url.PathEscape(*id)
	if *force {
		path += "?force=true"
	}
	request(http.MethodDelete, path, nil)
	fmt.Println("ok")
}

func statsCmd() {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	id := fs.String("id", "", "container id")
	fs.Parse(os.Args[2:])
	if *id == "" {
		fatal("id required")
	}

	resp := do(http.MethodGet, "/containers/"+url.PathEscape(*id)+"/stats", nil, "")
	defer resp.Body.Close()
	io.Copy(os.Stdout, resp.Body)
	fmt.Println()
}

func mkbucketCmd() {
	fs := flag.NewFlagSet("mkbucket", flag.ExitOnError)
	name := fs.String("name", "", "bucket name")
	public := fs.Bool("public", false, "world-readable bucket")
	fs.Parse(os.Args[2:])
	if *name == "" {
		fatal("name required")
	}

	data := request(http.MethodPost, "/storage/buckets", map[string]any{
		"name": *name, "public": *public,
	})
	printJSON(data)
}

func rmbucketCmd() {
	fs := flag.NewFlagSet("rmbucket", flag.ExitOnError)
	id := fs.String("id", "", "bucket id")
	fs.Parse(os.Args[2:])
	if *id == "" {
		fatal("id required")
	}
	request(http.MethodDelete, "/storage/buckets/"+url.PathEscape(*id), nil)
	fmt.Println("ok")
}

func putCmd() {
	fs := flag.NewFlagSet("put", flag.ExitOnError)
	bucket := fs.String("bucket", "", "bucket name")
	key := fs.String("key", "", "object key")
	file := fs.String("file", "", "local file to upload")
	public := fs.Bool("public", false, "world-readable object")
	fs.Parse(os.Args[2:])
	if *bucket == "" || *key == "" || *file == "" {
		fatal("bucket, key and file required")
	}

	payload, err := os.ReadFile(*file)
	if err != nil {
		fatal("read file: %v", err)
	}

	path := fmt.Sprintf("/storage/buckets/%s/objects/%s", url.PathEscape(*bucket), url.PathEscape(*key))
	if *public {
		path += "?public=true"
	}
	resp := do(http.MethodPut, path, payload, "application/octet-stream")
	printJSON(decode(resp))
}

func presignCmd() {
	fs := flag.NewFlagSet("presign", flag.ExitOnError)
	bucket := fs.String("bucket", "", "bucket name")
	key := fs.String("key", "", "object key")
	expiry := fs.Int("expiry", 0, "link lifetime in seconds")
	fs.Parse(os.Args[2:])
	if *bucket == "" || *key == "" {
		fatal("bucket and key required")
	}

	path := fmt.Sprintf("/storage/buckets/%s/objects/%s/presign", url.PathEscape(*bucket), url.PathEscape(*key))
	data := request(http.MethodPost, path, map[string]int{"expiry_seconds": *expiry})
	printJSON(data)
}

func simpleGet(path string) {
	printJSON(request(http.MethodGet, path, nil))
}

// request performs a JSON call and returns the data field, exiting on
// any transport or API error.
func request(method, path string, body any) json.RawMessage {
	var payload []byte
	if body != nil {
		payload, _ = json.Marshal(body)
	}
	return decode(do(method, path, payload, "application/json"))
}

func do(method, path string, payload []byte, contentType string) *http.Response {
	cfg := loadConfig()

	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.Logger = nil

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := retryablehttp.NewRequest(method, cfg.Endpoint+path, body)
	if err != nil {
		fatal("build request: %v", err)
	}
	if contentType != "" && payload != nil {
		req.Header.Set("Content-Type", contentType)
	}
	if cfg.APIKey != "" {
		req.Header.Set("X-API-Key", cfg.APIKey)
	} else if cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.Token)
	}

	resp, err := client.Do(req)
	if err != nil {
		fatal("request failed: %v", err)
	}
	return resp
}

func decode(resp *http.Response) json.RawMessage {
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		fatal("decode response: %v", err)
	}
	if !env.Ok {
		fatal("server error (%d): %s", resp.StatusCode, env.Error)
	}
	return env.Data
}

func printJSON(data json.RawMessage) {
	if len(data) == 0 {
		fmt.Println("ok")
		return
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		fmt.Println(string(data))
		return
	}
	fmt.Println(buf.String())
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
