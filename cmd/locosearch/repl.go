package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"loco-platform/internal/search"
)

const helpText = `commands:
  q <text>              set query (suggestions and search are debounced)
  search                search now
  filter <name> [value] job_type, location, is_urgent, remote_possible,
                        salary_min, salary_max, radius_km, sort_by, sort_order
  page <n> | next | prev
  limit <n>
  clear | clear-filters
  locate | unlocate
  trending | pick <n> | trend <n>
  history | retry | help | quit`

var errQuit = errors.New("quit")

// repl 逐行执行命令直到 EOF 或 quit。
func repl(ctx context.Context, ctrl *search.Controller, r *textRenderer, in io.Reader) error {
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		err := runCommand(ctx, ctrl, r, sc.Text())
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			r.printf("error: %v\n", err)
		}
	}
	return sc.Err()
}

func runCommand(ctx context.Context, ctrl *search.Controller, r *textRenderer, line string) error {
	cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "":
		return nil
	case "q", "query":
		ctrl.SetQuery(arg)
		return nil
	case "search", "s":
		return ctrl.Search(ctx)
	case "filter", "f":
		name, raw, _ := strings.Cut(arg, " ")
		value, err := filterValue(search.Filter(name), strings.TrimSpace(raw))
		if err != nil {
			return err
		}
		return ctrl.SetFilter(ctx, search.Filter(name), value)
	case "page":
		n, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("page: %w", err)
		}
		return ctrl.SetPage(ctx, n)
	case "next", "prev":
		page := ctrl.State().Pagination.Page
		if cmd == "next" {
			page++
		} else {
			page--
		}
		if page < 1 {
			return nil
		}
		return ctrl.SetPage(ctx, page)
	case "limit":
		n, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("limit: %w", err)
		}
		if err := ctrl.SetLimit(n); err != nil {
			return err
		}
		return ctrl.Search(ctx)
	case "clear":
		return ctrl.ClearSearch(ctx)
	case "clear-filters":
		return ctrl.ClearFilters(ctx)
	case "locate":
		return ctrl.EnableLocation(ctx)
	case "unlocate":
		return ctrl.DisableLocation(ctx)
	case "trending":
		return ctrl.LoadTrending(ctx)
	case "pick", "trend":
		n, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("%s: %w", cmd, err)
		}
		list := "suggestions"
		if cmd == "trend" {
			list = "trending"
		}
		q, ok := r.pick(list, n)
		if !ok {
			return fmt.Errorf("no %s entry %d", list, n)
		}
		if cmd == "trend" {
			return ctrl.SearchTrending(ctx, q)
		}
		return ctrl.SelectSuggestion(ctx, q)
	case "history":
		for i, h := range ctrl.History() {
			at := time.UnixMilli(h.Timestamp).Format("2006-01-02 15:04")
			r.printf("  %d) %q at %s\n", i+1, h.Query, at)
		}
		return nil
	case "retry":
		return ctrl.Retry(ctx)
	case "help", "?":
		r.printf("%s\n", helpText)
		return nil
	case "quit", "exit":
		return errQuit
	}
	return fmt.Errorf("unknown command %q (try help)", cmd)
}

// filterValue 把文本参数转换为控制器期望的类型。
func filterValue(name search.Filter, raw string) (any, error) {
	switch name {
	case search.FilterUrgent, search.FilterRemote:
		if raw == "" {
			return true, nil
		}
		return strconv.ParseBool(raw)
	case search.FilterSalaryMin, search.FilterSalaryMax:
		if raw == "" {
			return nil, nil
		}
		return strconv.Atoi(raw)
	case search.FilterRadius:
		return strconv.ParseFloat(raw, 64)
	default:
		return raw, nil
	}
}
