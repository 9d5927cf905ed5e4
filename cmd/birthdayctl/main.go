// birthdayctl manages the entity database used by birthdayd: add,
// inspect, search and remove entities, and edit the global settings.
// It opens the same sqlite file as the daemon; sqlite's locking keeps
// concurrent access safe.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"birthdayd/internal/birthday"
	"birthdayd/internal/storage"
	"birthdayd/pkg/logx"
)

func main() {
	var dbPath string
	flag.StringVar(&dbPath, "db", "./birthdayd.db", "path to the sqlite database")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	store, err := storage.Open(storage.Config{Path: dbPath}, logx.Nop())
	if err != nil {
		fatal("open %s: %v", dbPath, err)
	}
	defer store.Close()

	ctx := context.Background()
	cmd, args := flag.Arg(0), flag.Args()[1:]
	switch cmd {
	case "add":
		err = cmdAdd(ctx, store, args)
	case "list":
		err = cmdList(ctx, store)
	case "upcoming":
		err = cmdUpcoming(ctx, store, args)
	case "search":
		err = cmdSearch(ctx, store, args)
	case "remove":
		err = cmdRemove(ctx, store, args)
	case "enable", "disable":
		err = cmdToggle(ctx, store, cmd == "enable", args)
	case "settings":
		err = cmdSettings(ctx, store, args)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fatal("%s: %v", cmd, err)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `usage: birthdayctl [-db path] <command> [flags]

commands:
  add       add an entity (-name, -date, -note, -alias, -days-before, -no-notify)
  list      list all entities
  upcoming  show the next birthdays (-n count)
  search    find entities by keyword or month/day pattern ("6/15", "6/")
  remove    delete an entity by id
  enable    turn reminders on for an entity by id
  disable   turn reminders off for an entity by id
  settings  show or change global settings
`)
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "birthdayctl: "+format+"\n", args...)
	os.Exit(1)
}

func cmdAdd(ctx context.Context, store storage.Store, args []string) error {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	name := fs.String("name", "", "entity name (required)")
	date := fs.String("date", "", `birthday: "2006-01-02", "01-02" or "1/2" (year optional)`)
	note := fs.String("note", "", "free-form note")
	aliases := fs.String("alias", "", "comma-separated aliases")
	daysBefore := fs.String("days-before", "", `look-ahead override: 1-30, or "off" to disable reminders for this entity`)
	noNotify := fs.Bool("no-notify", false, "create with notifications disabled")
	_ = fs.Parse(args)

	e := birthday.Entity{
		Name:          strings.TrimSpace(*name),
		Note:          *note,
		NotifyEnabled: !*noNotify,
	}
	if *date != "" {
		year, month, day, err := parseDate(*date)
		if err != nil {
			return err
		}
		if year != 0 {
			e.BirthYear = &year
		}
		e.BirthMonth = &month
		e.BirthDay = &day
	}
	switch db := strings.TrimSpace(*daysBefore); db {
	case "":
	case "off":
		e.DaysBefore = birthday.DisabledDays()
	default:
		n, err := strconv.Atoi(db)
		if err != nil {
			return fmt.Errorf("days-before: %q is not a number", db)
		}
		if e.DaysBefore, err = birthday.FixedDays(n); err != nil {
			return err
		}
	}
	for _, a := range strings.Split(*aliases, ",") {
		if a = strings.TrimSpace(a); a != "" {
			e.Aliases = append(e.Aliases, birthday.Alias{Name: a})
		}
	}

	id, err := store.Add(ctx, &e)
	if err != nil {
		return err
	}
	fmt.Printf("added #%d %s\n", id, e.Name)
	return nil
}

func cmdList(ctx context.Context, store storage.Store) error {
	entities, err := store.ListAll(ctx)
	if err != nil {
		return err
	}
	for i := range entities {
		printEntity(&entities[i])
	}
	fmt.Printf("%d entities\n", len(entities))
	return nil
}

func cmdUpcoming(ctx context.Context, store storage.Store, args []string) error {
	fs := flag.NewFlagSet("upcoming", flag.ExitOnError)
	n := fs.Int("n", 10, "number of entries")
	_ = fs.Parse(args)

	entities, err := store.ListAll(ctx)
	if err != nil {
		return err
	}
	now := time.Now()
	for _, t := range birthday.Upcoming(entities, now, *n) {
		line := fmt.Sprintf("%3dd  %s (%s)", t.DaysUntil, t.Entity.Name, t.Entity.BirthdayString())
		if age, ok := t.Entity.AgeTurning(now); ok {
			line += fmt.Sprintf(", turning %d", age)
		}
		fmt.Println(line)
	}
	return nil
}

func cmdSearch(ctx context.Context, store storage.Store, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: search <keyword>")
	}
	entities, err := store.Search(ctx, args[0])
	if err != nil {
		return err
	}
	for i := range entities {
		printEntity(&entities[i])
	}
	fmt.Printf("%d matches\n", len(entities))
	return nil
}

func cmdRemove(ctx context.Context, store storage.Store, args []string) error {
	id, err := parseID(args)
	if err != nil {
		return err
	}
	if err := store.Delete(ctx, id); err != nil {
		return err
	}
	fmt.Printf("removed #%d\n", id)
	return nil
}

func cmdToggle(ctx context.Context, store storage.Store, enable bool, args []string) error {
	id, err := parseID(args)
	if err != nil {
		return err
	}
	e, err := store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	e.NotifyEnabled = enable
	if err := store.Update(ctx, &e); err != nil {
		return err
	}
	fmt.Printf("#%d %s: notifications %s\n", e.ID, e.Name, map[bool]string{true: "on", false: "off"}[enable])
	return nil
}

func cmdSettings(ctx context.Context, store storage.Store, args []string) error {
	fs := flag.NewFlagSet("settings", flag.ExitOnError)
	daysBefore := fs.Int("days-before", 0, "default look-ahead in days (1-30)")
	at := fs.String("time", "", `daily reminder time, e.g. "12:00"`)
	sound := fs.String("sound", "", "default sound on/off: true or false")
	lang := fs.String("language", "", "language tag, e.g. en-US")
	_ = fs.Parse(args)

	s, err := store.Settings(ctx)
	if err != nil {
		return err
	}

	changed := false
	if *daysBefore != 0 {
		s.DefaultDaysBefore = *daysBefore
		changed = true
	}
	if *at != "" {
		s.NotifyAt = *at
		changed = true
	}
	if *sound != "" {
		v, err := strconv.ParseBool(*sound)
		if err != nil {
			return fmt.Errorf("sound: %q is not a boolean", *sound)
		}
		s.DefaultSound = v
		changed = true
	}
	if *lang != "" {
		s.Language = *lang
		changed = true
	}
	if changed {
		if err := s.Validate(); err != nil {
			return err
		}
		if err := store.SaveSettings(ctx, s); err != nil {
			return err
		}
	}

	fmt.Printf("days before:  %d\n", s.DefaultDaysBefore)
	fmt.Printf("time:         %s\n", s.NotifyAt)
	fmt.Printf("sound:        %v\n", s.DefaultSound)
	fmt.Printf("language:     %s\n", s.Language)
	return nil
}

func printEntity(e *birthday.Entity) {
	var flags []string
	if !e.NotifyEnabled {
		flags = append(flags, "muted")
	}
	if _, ok := e.DaysBefore.Resolve(0); !ok && e.NotifyEnabled {
		flags = append(flags, "reminder off")
	}
	line := fmt.Sprintf("#%-4d %-24s %s", e.ID, e.Name, e.BirthdayString())
	if len(e.Aliases) > 0 {
		names := make([]string, len(e.Aliases))
		for i, a := range e.Aliases {
			names[i] = a.Name
		}
		line += " aka " + strings.Join(names, ", ")
	}
	if len(flags) > 0 {
		line += " [" + strings.Join(flags, ", ") + "]"
	}
	fmt.Println(line)
}

func parseID(args []string) (int64, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("expected one id argument")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", args[0])
	}
	return id, nil
}

// parseDate accepts "2006-01-02", "01-02" and "1/2" forms; year 0 means
// unknown.
func parseDate(s string) (year, month, day int, err error) {
	s = strings.TrimSpace(s)
	sep := "-"
	if strings.Contains(s, "/") {
		sep = "/"
	}
	parts := strings.Split(s, sep)
	nums := make([]int, len(parts))
	for i, p := range parts {
		nums[i], err = strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return 0, 0, 0, fmt.Errorf("invalid date %q", s)
		}
	}
	switch len(nums) {
	case 2:
		return 0, nums[0], nums[1], nil
	case 3:
		return nums[0], nums[1], nums[2], nil
	default:
		return 0, 0, 0, fmt.Errorf("invalid date %q", s)
	}
}
