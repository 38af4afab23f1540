// Command blackwidow is a minimal example exercising the façade end to
// end, mirroring the role of the original's examples/strings_example.cc:
// open a database, run a few string commands, and print what happened.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/PikaLabs/blackwidow"
)

func statusString(st *blackwidow.Status) string {
	if st == nil {
		return "OK"
	}
	return st.Error()
}

func main() {
	dir := flag.String("dir", "./db", "database directory")
	flag.Parse()

	db, err := blackwidow.Open(*dir, blackwidow.WithCreateIfMissing(true))
	if err != nil {
		fmt.Printf("Open failed, error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()
	fmt.Println("Open success")

	st := db.Strings.Set([]byte("TEST_KEY"), []byte("TEST_VALUE"))
	fmt.Printf("Set return: %s\n", statusString(st))

	value, st := db.Strings.Get([]byte("TEST_KEY"))
	fmt.Printf("Get return: %s, value: %s\n", statusString(st), value)

	st = db.Strings.Expire([]byte("TEST_KEY"), 1)
	fmt.Printf("Expire return: %s\n", statusString(st))

	time.Sleep(1200 * time.Millisecond)
	value, st = db.Strings.Get([]byte("TEST_KEY"))
	fmt.Printf("Get return: %s, value: %s\n", statusString(st), value)

	db.Compact()
	fmt.Println("Compact return: OK")

	st = db.Strings.Setex([]byte("TEST_KEY"), []byte("TEST_VALUE"), 1)
	fmt.Printf("Setex return: %s\n", statusString(st))

	time.Sleep(1200 * time.Millisecond)
	value, st = db.Strings.Get([]byte("TEST_KEY"))
	fmt.Printf("Get return: %s, value: %s\n", statusString(st), value)

	st = db.Strings.Set([]byte("TEST_KEY"), []byte("TEST_VALUE"))
	fmt.Printf("Set return: %s\n", statusString(st))

	n, st := db.Strings.Strlen([]byte("TEST_KEY"))
	fmt.Printf("Strlen return: %s, strlen: %d\n", statusString(st), n)
}
