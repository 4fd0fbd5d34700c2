// branchctl drives the local branchd API from the command line, for
// scripting and diagnostics while the operator UI is out of reach.
//
// Usage:
//
//	branchctl [-addr http://localhost:8090] <command> [args]
//
// Commands:
//
//	login <phone> <password>
//	orders [status]
//	order <id>
//	accept <id>
//	cancel <id> <reason>
//	pack <id>
//	modify <id> <itemId=count> [...]
//	assign <id> <partnerId>
//	collect <id>
//	cancel-item <id> <itemId>
//	wallet
//	store <open|closed>
//	delivery <on|off>
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
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

func main() {
	godotenv.Load()

	addr := flag.String("addr", envOr("BRANCHD_ADDR", "http://localhost:8090"), "branchd address")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	base := strings.TrimSuffix(*addr, "/") + "/v1"
	cmd, rest := args[0], args[1:]

	var err error
	switch cmd {
	case "login":
		err = expect(rest, 2, func() error {
			return post(base+"/session/login", map[string]string{"phone": rest[0], "password": rest[1]})
		})
	case "orders":
		path := base + "/orders"
		if len(rest) == 1 {
			path += "?status=" + url.QueryEscape(rest[0])
		}
		err = get(path)
	case "order":
		err = expect(rest, 1, func() error { return get(base + "/orders/" + url.PathEscape(rest[0])) })
	case "accept":
		err = expect(rest, 1, func() error { return post(orderPath(base, rest[0], "accept"), nil) })
	case "cancel":
		err = expect(rest, 2, func() error {
			return post(orderPath(base, rest[0], "cancel"), map[string]string{"reason": rest[1]})
		})
	case "pack":
		err = expect(rest, 1, func() error { return post(orderPath(base, rest[0], "pack"), nil) })
	case "modify":
		if len(rest) < 2 {
			err = fmt.Errorf("modify needs an order id and at least one itemId=count")
			break
		}
		var items []map[string]interface{}
		for _, pair := range rest[1:] {
			itemID, countRaw, ok := strings.Cut(pair, "=")
			if !ok {
				err = fmt.Errorf("bad edit %q, want itemId=count", pair)
				break
			}
			count, convErr := strconv.Atoi(countRaw)
			if convErr != nil {
				err = fmt.Errorf("bad count in %q: %v", pair, convErr)
				break
			}
			items = append(items, map[string]interface{}{"item": itemID, "count": count})
		}
		if err == nil {
			err = post(orderPath(base, rest[0], "modify"), map[string]interface{}{"modifiedItems": items})
		}
	case "assign":
		err = expect(rest, 2, func() error {
			return post(orderPath(base, rest[0], "assign/"+url.PathEscape(rest[1])), nil)
		})
	case "collect":
		err = expect(rest, 1, func() error { return post(orderPath(base, rest[0], "collect-cash"), nil) })
	case "cancel-item":
		err = expect(rest, 2, func() error {
			path := base + "/orders/" + url.PathEscape(rest[0]) + "/items/" + url.PathEscape(rest[1]) + "/cancel"
			return post(path, nil)
		})
	case "wallet":
		err = get(base + "/wallet")
	case "store":
		err = expect(rest, 1, func() error {
			return post(base+"/store/status", map[string]bool{"open": rest[0] == "open"})
		})
	case "delivery":
		err = expect(rest, 1, func() error {
			return post(base+"/store/delivery", map[string]bool{"available": rest[0] == "on"})
		})
	default:
		err = fmt.Errorf("unknown command %q", cmd)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func orderPath(base, id, action string) string {
	return base + "/orders/" + url.PathEscape(id) + "/" + action
}

func expect(args []string, n int, run func() error) error {
	if len(args) != n {
		return fmt.Errorf("expected %d argument(s), got %d", n, len(args))
	}
	return run()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func get(path string) error {
	resp, err := http.Get(path)
	if err != nil {
		return err
	}
	return render(resp)
}

func post(path string, payload interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	resp, err := http.Post(path, "application/json", body)
	if err != nil {
		return err
	}
	return render(resp)
}

func render(resp *http.Response) error {
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	var pretty bytes.Buffer
	if json.Indent(&pretty, raw, "", "  ") == nil {
		fmt.Println(pretty.String())
	} else {
		fmt.Println(string(raw))
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("branchd returned %d", resp.StatusCode)
	}
	return nil
}
