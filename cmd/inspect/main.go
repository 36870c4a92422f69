// Command inspect prints the content of a wagl Badger directory as a table.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"wagl-backend/infrastructure/storage"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/kelseyhightower/envconfig"
	"github.com/mama165/sdk-go/database"
	"github.com/olekukonko/tablewriter"
)

type Config struct {
	BadgerFilepath string `envconfig:"BADGER_FILEPATH"`
	// INSPECT_COLOURS highlights the entity kinds
	Colours bool `envconfig:"INSPECT_COLOURS" default:"true"`
	// INSPECT_WITH_INDEXES also lists the idx: entries
	WithIndexes bool `envconfig:"INSPECT_WITH_INDEXES" default:"false"`
}

var kindColours = map[string]color.Color{
	"SESSION":     color.FgGreen,
	"ROOM":        color.FgCyan,
	"PARTICIPANT": color.FgYellow,
	"INVITE":      color.FgMagenta,
	"MESSAGE":     color.FgWhite,
	"INDEX":       color.FgGray,
}

func main() {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		log.Fatal("Error while reading configuration: ", err)
	}
	if config.BadgerFilepath == "" {
		config.BadgerFilepath = database.DefaultPath
	}

	dbPath := flag.String("db", config.BadgerFilepath, "Path to badger DB")
	prefix := flag.String("prefix", "", "Prefix to scan, e.g. session: or msg:")
	limit := flag.Int("limit", 0, "Maximum number of rows, 0 for all")
	flag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Kind", "At", "Detail"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	counts := make(map[string]int)
	rows := 0
	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			if *limit > 0 && rows == *limit {
				break
			}
			item := it.Item()
			key := string(item.Key())
			if !config.WithIndexes && strings.HasPrefix(key, "idx:") {
				continue
			}

			val, err := item.ValueCopy(nil)
			if err != nil {
				return fmt.Errorf("read %s: %w", key, err)
			}
			entry := storage.Describe(key, val)
			counts[entry.Kind]++
			rows++

			kind := entry.Kind
			if c, ok := kindColours[kind]; ok && config.Colours {
				kind = c.Render(kind)
			}
			table.Append([]string{key, kind, entry.At, entry.Detail})
		}
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}

	table.Render()

	summary := fmt.Sprintf("%d rows", rows)
	for kind, n := range counts {
		summary += fmt.Sprintf(", %s: %d", strings.ToLower(kind), n)
	}
	if config.Colours {
		summary = color.New(color.BgBlack, color.FgGreen).Render(summary)
	}
	fmt.Println(summary)
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true)

	db, err := badger.Open(opts)
	if err != nil {
		// A crashed writer leaves a value log to truncate: open once in write mode, then retry
		if strings.Contains(err.Error(), "Log truncate required") {
			repairOpts := badger.DefaultOptions(path).
				WithLogger(nil).WithBypassLockGuard(true)

			db, err = badger.Open(repairOpts)
			if err != nil {
				return nil, fmt.Errorf("repair failed: %w", err)
			}
			_ = db.Close()
			return badger.Open(opts)
		}
		return nil, err
	}
	return db, nil
}
