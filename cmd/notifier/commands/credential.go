package commands

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"regulatory_notifier/internal/infra/credential"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	credUsername      string
	credKeyFile       string
	credFile          string
	credPasswordStdin bool
	credForce         bool
)

var credentialCmd = &cobra.Command{
	Use:   "credential",
	Short: "Manage the encrypted mail credential",
}

var credentialInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a key and write the encrypted mail password",
	Long: `Init generates a new key file and writes the credential file holding the
username and the password encrypted with that key. The password is read from
the terminal without echo, or from stdin with --password-stdin.`,
	Args: cobra.NoArgs,
	RunE: runCredentialInit,
}

func init() {
	credentialInitCmd.Flags().StringVar(&credUsername, "username", os.Getenv("SENDER_ADDRESS"), "mail account username")
	credentialInitCmd.Flags().StringVar(&credKeyFile, "key-file", envOr("KEY_FILE", "key.key"), "path of the key file to create")
	credentialInitCmd.Flags().StringVar(&credFile, "credential-file", envOr("CREDENTIAL_FILE", "CredFile.ini"), "path of the credential file to create")
	credentialInitCmd.Flags().BoolVar(&credPasswordStdin, "password-stdin", false, "read the password from stdin")
	credentialInitCmd.Flags().BoolVar(&credForce, "force", false, "replace existing key and credential files")

	credentialCmd.AddCommand(credentialInitCmd)
}

func runCredentialInit(cmd *cobra.Command, args []string) error {
	if !credForce {
		for _, p := range []string{credKeyFile, credFile} {
			if _, err := os.Stat(p); err == nil {
				return fmt.Errorf("%s already exists, use --force to replace it", p)
			}
		}
	}

	password, err := readPassword(cmd)
	if err != nil {
		return err
	}
	if err := credential.Provision(credKeyFile, credFile, credUsername, password); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s and %s\n", credKeyFile, credFile)
	return nil
}

func readPassword(cmd *cobra.Command) (string, error) {
	if !credPasswordStdin {
		fd := int(os.Stdin.Fd())
		if !term.IsTerminal(fd) {
			return "", errors.New("stdin is not a terminal, use --password-stdin")
		}
		fmt.Fprint(cmd.ErrOrStderr(), "Mail password: ")
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", errors.New("empty password")
	}
	return password, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
