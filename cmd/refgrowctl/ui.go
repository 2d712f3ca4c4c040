package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	cl "refgrow/internal/cli"
	"refgrow/internal/referral"

	"github.com/fatih/color"
	"golang.org/x/term"
)

var (
	stdinReader = bufio.NewReader(os.Stdin)
	accent      = color.New(color.FgCyan, color.Bold)
	success     = color.New(color.FgGreen, color.Bold)
	warn        = color.New(color.FgYellow, color.Bold)
	neutral     = color.New(color.FgHiWhite)
	muted       = color.New(color.FgHiBlack)
)

const unnamed = "(no name)"

func printSuccess(msg string) {
	success.Println(msg)
}

func printWarn(msg string) {
	warn.Println(msg)
}

// dotEnvWarning is empty when .env loaded or was absent.
func dotEnvWarning(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("warning: ignoring .env: %v", err)
}

func printInfo(msg string) {
	neutral.Println(msg)
}

func promptRequired(label string) (string, error) {
	for {
		fmt.Printf("%s: ", label)
		text, err := stdinReader.ReadString('\n')
		if err != nil {
			return "", err
		}
		text = strings.TrimSpace(text)
		if text != "" {
			return text, nil
		}
		printWarn(label + " is required.")
	}
}

// promptPassword reads without echo when stdin is a terminal.
func promptPassword(label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return promptRequired(label)
	}
	for {
		fmt.Printf("%s: ", label)
		raw, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", err
		}
		if text := string(raw); text != "" {
			return text, nil
		}
		printWarn(label + " is required.")
	}
}

func promptInt64(label string, min int64) (int64, error) {
	for {
		text, err := promptRequired(label)
		if err != nil {
			return 0, err
		}
		v, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			printWarn("Enter a whole number.")
			continue
		}
		if v < min {
			printWarn(fmt.Sprintf("Value must be >= %d", min))
			continue
		}
		return v, nil
	}
}

func renderLeaderboard(rows []referral.LeaderboardRow, title string) {
	accent.Printf("\n== %s ==\n", strings.ToUpper(title))
	if len(rows) == 0 {
		printInfo("No participants yet.")
		return
	}
	fmt.Printf("%-6s %-14s %-24s %-18s %8s\n", "RANK", "ID", "NAME", "HANDLE", "REFS")
	for _, row := range rows {
		fmt.Printf("%-6d %-14d %-24s %-18s %8s\n",
			row.Rank,
			row.ParticipantID,
			truncate(nameOrPlaceholder(row.DisplayName), 24),
			truncate(handle(row.Handle), 18),
			comma(row.RefCount),
		)
	}
	fmt.Println()
}

func renderParticipants(all []cl.Profile) {
	accent.Printf("\n== PARTICIPANTS (%d) ==\n", len(all))
	if len(all) == 0 {
		printInfo("No participants yet.")
		return
	}
	fmt.Printf("%-14s %-24s %-18s %8s  %s\n", "ID", "NAME", "HANDLE", "REFS", "LINK")
	for _, p := range all {
		fmt.Printf("%-14d %-24s %-18s %8s  %s\n",
			p.ID,
			truncate(nameOrPlaceholder(p.DisplayName), 24),
			truncate(handle(p.Handle), 18),
			comma(p.RefCount),
			p.Link,
		)
	}
	fmt.Println()
}

func renderProfile(p cl.Profile) {
	accent.Printf("\n== PARTICIPANT %d ==\n", p.ID)
	fmt.Printf("%-12s %s\n", "Name", nameOrPlaceholder(p.DisplayName))
	fmt.Printf("%-12s %s\n", "Handle", handle(p.Handle))
	fmt.Printf("%-12s %s\n", "Referrals", comma(p.RefCount))
	fmt.Printf("%-12s %s\n", "Link", p.Link)
	fmt.Printf("%-12s %s\n", "Since", p.CreatedAt.Local().Format("2006-01-02 15:04"))
	if p.InvitedBy != nil {
		joined := ""
		if p.JoinedAt != nil {
			joined = " on " + p.JoinedAt.Local().Format("2006-01-02 15:04")
		}
		fmt.Printf("%-12s %d%s\n", "Invited by", *p.InvitedBy, joined)
	} else {
		muted.Printf("%-12s %s\n", "Invited by", "nobody")
	}
	fmt.Println()
}

func nameOrPlaceholder(name string) string {
	if strings.TrimSpace(name) == "" {
		return unnamed
	}
	return name
}

func handle(h string) string {
	if h == "" {
		return "-"
	}
	return "@" + h
}

func comma(v int64) string {
	s := strconv.FormatInt(v, 10)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	pre := len(s) % 3
	if pre > 0 {
		b.WriteString(s[:pre])
		if len(s) > pre {
			b.WriteByte(',')
		}
	}
	for i := pre; i < len(s); i += 3 {
		b.WriteString(s[i : i+3])
		if i+3 < len(s) {
			b.WriteByte(',')
		}
	}
	return b.String()
}

// truncate cuts on rune boundaries; display names are often non-ASCII.
func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}
