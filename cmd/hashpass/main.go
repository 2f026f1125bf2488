// hashpass печатает Argon2id-хеш пароля админ-панели.
// Результат вставьте в .env как ADMIN_PASSWORD_HASH.
//
//	hashpass --password 'секрет'
//	echo 'секрет' | hashpass
package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"serotonyl.ru/escrow-bot/internal/features/admin"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, "Ошибка:", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	flagSet := pflag.NewFlagSet("hashpass", pflag.ContinueOnError)
	password := flagSet.StringP("password", "p", "", "пароль; без флага читается первая строка stdin")
	quiet := flagSet.BoolP("quiet", "q", false, "печатать только хеш")
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	if *password == "" {
		line, err := bufio.NewReader(stdin).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("ошибка чтения stdin: %w", err)
		}
		*password = strings.TrimRight(line, "\r\n")
	}
	if strings.TrimSpace(*password) == "" {
		return errors.New("пароль не может быть пустым")
	}

	hash, err := admin.HashPassword(*password, nil)
	if err != nil {
		return err
	}
	if !*quiet {
		fmt.Fprintln(stdout, "Хеш пароля (вставьте в .env как ADMIN_PASSWORD_HASH):")
	}
	fmt.Fprintln(stdout, hash)
	return nil
}
