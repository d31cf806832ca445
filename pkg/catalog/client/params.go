package client

import (
	"fmt"
	"net/url"
)

func Page(page int) RequestDecoratorFunc {
	return func(params []string) []string {
		return append(params, fmt.Sprintf("page=%d", page))
	}
}

func PageSize(size int) RequestDecoratorFunc {
	return func(params []string) []string {
		return append(params, fmt.Sprintf("page_size=%d", size))
	}
}

func Search(query string) RequestDecoratorFunc {
	return func(params []string) []string {
		return append(params, "search="+url.QueryEscape(query))
	}
}

func Ordering(field string) RequestDecoratorFunc {
	return func(params []string) []string {
		return append(params, "ordering="+url.QueryEscape(field))
	}
}

func Filter(name, value string) RequestDecoratorFunc {
	return func(params []string) []string {
		return append(params, url.QueryEscape(name)+"="+url.QueryEscape(value))
	}
}
