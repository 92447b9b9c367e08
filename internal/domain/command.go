package domain

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ParseWalletArgs validates "/wallet <address>" arguments and returns the lowercased address.
// Exactly one argument starting with "0x"; strict additionally requires a 20-byte hex address.
func ParseWalletArgs(args []string, strict bool) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("%w: expected 1 argument, got %d", ErrValidation, len(args))
	}

	addr := args[0]
	if !strings.HasPrefix(addr, "0x") {
		return "", fmt.Errorf("%w: address must start with 0x", ErrValidation)
	}

	if strict && !common.IsHexAddress(addr) {
		return "", fmt.Errorf("%w: %s is not a hex address", ErrValidation, addr)
	}

	return strings.ToLower(addr), nil
}

// SplitCommand "/wallet@SomeBot 0xabc" -> ("wallet", ["0xabc"]); ok=false when text is not a command
func SplitCommand(text string) (string, []string, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", nil, false
	}

	cmd := strings.TrimPrefix(fields[0], "/")
	if i := strings.IndexByte(cmd, '@'); i >= 0 {
		cmd = cmd[:i]
	}

	return cmd, fields[1:], true
}

// CommandPayload renders the command that reproduces a report, used as refresh button payload
func CommandPayload(command, wallet string) string {
	return fmt.Sprintf("/%s %s", command, wallet)
}
