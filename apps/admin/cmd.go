package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/term"

	"github.com/trezcool/darasa/core/account"
	"github.com/trezcool/darasa/core/school"
	"github.com/trezcool/darasa/storage/database"
)

var (
	readPasswordFunc = term.ReadPassword // mockable
	migrateFunc      = database.Migrate  // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db        *sqlx.DB
	accRepo   account.Repository
	accSvc    account.Service
	schoolSvc school.Service
	out       io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a goose command: up, up-by-one, up-to, down, down-to, redo, reset, status, version")
	fmt.Fprintln(cli.out, "  addaccount -role ROLE -username USERNAME -email EMAIL [-code STUDENT_CODE] [-official] - create an account")
	fmt.Fprintln(cli.out, "  resetpassword -email EMAIL - reset an account's password")
	fmt.Fprintln(cli.out, "  addschool -name NAME -location LOCATION -email CONTACT_EMAIL - register a school")
	fmt.Fprintln(cli.out, "  schools - list the registered schools")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addAccountCmd := flag.NewFlagSet("addaccount", flag.ContinueOnError)
	addAccountRole := addAccountCmd.String("role", "", "student, teacher or community.")
	addAccountUname := addAccountCmd.String("username", "", "The account's username.")
	addAccountEmail := addAccountCmd.String("email", "", "The account's email. The password will be prompted next.")
	addAccountCode := addAccountCmd.String("code", "", "The student code (students only).")
	addAccountOfficial := addAccountCmd.Bool("official", false, "Mark the account as official.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordEmail := resetPasswordCmd.String("email", "", "The account's email. The password will be prompted next.")

	addSchoolCmd := flag.NewFlagSet("addschool", flag.ContinueOnError)
	addSchoolName := addSchoolCmd.String("name", "", "The school's name.")
	addSchoolLocation := addSchoolCmd.String("location", "", "The school's location.")
	addSchoolEmail := addSchoolCmd.String("email", "", "The school's contact email.")

	for _, fs := range []*flag.FlagSet{addAccountCmd, resetPasswordCmd, addSchoolCmd} {
		fs.SetOutput(cli.out)
	}

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "addaccount":
		if err := addAccountCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		role := account.Role(*addAccountRole)
		if !role.IsValid() || *addAccountUname == "" || *addAccountEmail == "" {
			addAccountCmd.Usage()
			return errHelp
		}
		if role == account.RoleStudent && *addAccountCode == "" {
			addAccountCmd.Usage()
			return errHelp
		}
		pwd, err := cli.readPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			addAccountCmd.Usage()
			return errHelp
		}
		acc := account.Account{
			Username:   *addAccountUname,
			Email:      *addAccountEmail,
			Role:       role,
			IsOfficial: *addAccountOfficial,
		}
		return cli.addAccount(acc, *addAccountCode, pwd)

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *resetPasswordEmail == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.readPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.accSvc.ResetPassword(context.Background(), *resetPasswordEmail, pwd)

	case "addschool":
		if err := addSchoolCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		ns := school.NewSchool{Name: *addSchoolName, Location: *addSchoolLocation, ContactEmail: *addSchoolEmail}
		sch, err := cli.schoolSvc.Create(context.Background(), ns)
		if err != nil {
			return err
		}
		fmt.Fprintf(cli.out, "school %q created (ID %d)\n", sch.Name, sch.ID)
		return nil

	case "schools":
		return cli.listSchools()

	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) readPassword() (string, error) {
	fmt.Fprint(cli.out, "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}

func (cli *commandLine) migrate(args []string) error {
	return migrateFunc(cli.db, args[0], args[1:]...)
}

// addAccount creates an account and its profile, bypassing the registration rules.
func (cli *commandLine) addAccount(acc account.Account, studentCode, pwd string) error {
	acc.CreatedAt = time.Now().UTC()
	if err := acc.SetPassword(pwd); err != nil {
		return err
	}

	var profile account.Profile
	if acc.IsStudent() {
		profile.StudentCode = studentCode
	}
	acc, err := cli.accRepo.Create(context.Background(), acc, profile)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%s account %q created (ID %d)\n", acc.Role, acc.Username, acc.ID)
	return nil
}

func (cli *commandLine) listSchools() error {
	schools, err := cli.schoolSvc.List(context.Background())
	if err != nil {
		return err
	}
	for _, s := range schools {
		fmt.Fprintf(cli.out, "%d\t%s\t%s\t%s\n", s.ID, s.Name, s.Location, s.ContactEmail)
	}
	return nil
}

func newCommandLine(db *sqlx.DB, accRepo account.Repository, accSvc account.Service, schoolSvc school.Service) *commandLine {
	return &commandLine{
		db:        db,
		accRepo:   accRepo,
		accSvc:    accSvc,
		schoolSvc: schoolSvc,
		out:       os.Stdout,
	}
}
