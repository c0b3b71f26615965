package chatcmder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/papercomputeco/chatrelay/pkg/llm"
)

const chatLongDesc string = `Send a message to a chat relay and print the reply as it streams.

Earlier turns can be supplied with --history, a JSON array of
{"role","content"} objects. The bearer token is read from --token
or CHATRELAY_TOKEN.

Examples:
  chatrelay chat --token $TOKEN "I could use some encouragement today"
  chatrelay chat --server http://localhost:8080 --history turns.json "And tomorrow?"
  chatrelay chat --markdown "Share a verse about patience"`

const chatShortDesc string = "Send a message and stream the reply"

const tokenEnv = "CHATRELAY_TOKEN"

// errNoToken is returned when neither the flag nor the environment has a token.
var errNoToken = errors.New("a token is required")

var warningStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#F59E0B")).
	Bold(true)

type chatCommander struct {
	serverURL   string
	token       string
	historyPath string
	markdown    bool

	// isTerminal reports whether out is an interactive terminal.
	isTerminal func(out io.Writer) bool
	httpClient *http.Client
}

func NewChatCmd() *cobra.Command {
	return newChatCmdFor(&chatCommander{
		isTerminal: stdoutIsTerminal,
		httpClient: http.DefaultClient,
	})
}

func newChatCmdFor(cmder *chatCommander) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "chat <message>",
		Short:        chatShortDesc,
		Long:         chatLongDesc,
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd, strings.Join(args, " "))
		},
	}

	cmd.Flags().StringVarP(&cmder.serverURL, "server", "s", "http://localhost:8080", "Relay server URL")
	cmd.Flags().StringVarP(&cmder.token, "token", "t", "", "Bearer token (default $"+tokenEnv+")")
	cmd.Flags().StringVar(&cmder.historyPath, "history", "", "Path to a JSON file of earlier turns")
	cmd.Flags().BoolVarP(&cmder.markdown, "markdown", "m", false, "Render the finished reply as markdown on a terminal")

	return cmd
}

func (c *chatCommander) run(ctx context.Context, cmd *cobra.Command, message string) error {
	token := c.token
	if token == "" {
		token = os.Getenv(tokenEnv)
	}
	if token == "" {
		return fmt.Errorf("%w: pass --token or set %s", errNoToken, tokenEnv)
	}

	turns, err := readHistory(c.historyPath)
	if err != nil {
		return err
	}
	turns = append(turns, llm.Message{Role: llm.RoleUser, Content: message})

	body, err := json.Marshal(llm.ChatRequest{Messages: turns})
	if err != nil {
		return fmt.Errorf("could not marshal conversation: %w", err)
	}

	url := strings.TrimRight(c.serverURL, "/") + "/chat-stream"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("could not build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return readServerError(resp)
	}

	out := cmd.OutOrStdout()
	if c.markdown && c.isTerminal(out) {
		return c.printRendered(cmd, resp.Body)
	}

	_, err = io.Copy(out, resp.Body)
	fmt.Fprintln(out)
	if err != nil {
		warnIncomplete(cmd, err)
	}
	return nil
}

// printRendered buffers the whole reply, then renders it as markdown.
func (c *chatCommander) printRendered(cmd *cobra.Command, body io.Reader) error {
	reply, readErr := io.ReadAll(body)

	rendered, err := renderMarkdown(string(reply), terminalWidth())
	if err != nil {
		// fall back to the raw text
		rendered = string(reply) + "\n"
	}
	fmt.Fprint(cmd.OutOrStdout(), rendered)

	if readErr != nil {
		warnIncomplete(cmd, readErr)
	}
	return nil
}

// warnIncomplete reports a reply that ended early. The relay cannot signal
// this in-band, so a broken connection is the only hint.
func warnIncomplete(cmd *cobra.Command, err error) {
	fmt.Fprintln(cmd.ErrOrStderr(), warningStyle.Render("reply may be incomplete: "+err.Error()))
}

func readHistory(path string) ([]llm.Message, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read history %s: %w", path, err)
	}

	var turns []llm.Message
	if err := json.Unmarshal(data, &turns); err != nil {
		return nil, fmt.Errorf("history %s must be a JSON array of messages: %w", path, err)
	}
	return turns, nil
}

func readServerError(resp *http.Response) error {
	data, _ := io.ReadAll(resp.Body)

	var e llm.ErrorResponse
	if err := json.Unmarshal(data, &e); err == nil && e.Error != "" {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, e.Error)
	}
	return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
}

func renderMarkdown(text string, width int) (string, error) {
	style := "light"
	if termenv.HasDarkBackground() {
		style = "dark"
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithColorProfile(termenv.EnvColorProfile()),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", err
	}
	return r.Render(text)
}

func stdoutIsTerminal(out io.Writer) bool {
	f, ok := out.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return 80
	}
	return width
}
