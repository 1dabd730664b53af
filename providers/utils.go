// Package providers implements the downstream insert APIs PushBQ can relay to.
// This file contains URL handling and client helpers shared by providers.
package providers

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/maximhq/pushbq/interfaces"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpproxy"
)

// BuildInsertAllURL returns the tables.insertAll endpoint for the given table.
// baseURL is expected to be normalized already; any trailing slashes are
// dropped so the result never contains "//" after the authority.
func BuildInsertAllURL(baseURL, projectID, datasetID, tableID string) string {
	return fmt.Sprintf("%s/bigquery/v2/projects/%s/datasets/%s/tables/%s/insertAll",
		strings.TrimRight(baseURL, "/"),
		url.PathEscape(projectID),
		url.PathEscape(datasetID),
		url.PathEscape(tableID))
}

// NormalizeDestination turns a caller supplied destination into a base URL
// of the form scheme://host[:port][/prefix] without a trailing slash.
//
// A bare host[:port] defaults to http, and "scheme:/host" (the shape left
// behind when a path normalizer collapses "//") is repaired to "scheme://host".
func NormalizeDestination(raw string) (string, error) {
	destination := strings.TrimSpace(raw)
	if destination == "" {
		return "", fmt.Errorf("%s: empty", interfaces.ErrForwarderInvalidURL)
	}

	if idx := strings.Index(destination, ":/"); idx != -1 && !strings.HasPrefix(destination[idx:], "://") {
		destination = destination[:idx] + "://" + destination[idx+2:]
	}
	if !strings.Contains(destination, "://") {
		destination = "http://" + destination
	}

	parsed, err := url.Parse(destination)
	if err != nil {
		return "", fmt.Errorf("%s: %w", interfaces.ErrForwarderInvalidURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("%s: unsupported scheme %q", interfaces.ErrForwarderInvalidURL, parsed.Scheme)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("%s: missing host", interfaces.ErrForwarderInvalidURL)
	}
	if parsed.RawQuery != "" || parsed.Fragment != "" {
		return "", fmt.Errorf("%s: query and fragment are not allowed", interfaces.ErrForwarderInvalidURL)
	}

	return strings.TrimRight(parsed.Scheme+"://"+parsed.Host+parsed.EscapedPath(), "/"), nil
}

// ValidateIdentifier checks that a dataset or table id can be used as a
// single path segment.
func ValidateIdentifier(name, value string) error {
	if value == "" {
		return fmt.Errorf("%s: %s", interfaces.ErrForwarderMissingField, name)
	}
	if strings.ContainsAny(value, "/?#") || value == "." || value == ".." {
		return fmt.Errorf("%s: %s %q", interfaces.ErrForwarderInvalidField, name, value)
	}
	return nil
}

// configureProxy sets up a proxy for the fasthttp client based on the provided configuration.
// It supports HTTP, SOCKS5, and environment-based proxy configurations.
// Returns the configured client or the original client if proxy configuration is invalid.
func configureProxy(client *fasthttp.Client, proxyConfig *interfaces.ProxyConfig, logger interfaces.Logger) *fasthttp.Client {
	if proxyConfig == nil {
		return client
	}

	var dialFunc fasthttp.DialFunc

	switch proxyConfig.Type {
	case interfaces.NoProxy, "":
		return client
	case interfaces.HttpProxy:
		if proxyConfig.URL == "" {
			logger.Warn("HTTP proxy URL is required for setting up proxy")
			return client
		}
		dialFunc = fasthttpproxy.FasthttpHTTPDialer(proxyURLWithAuth(proxyConfig, logger))
	case interfaces.Socks5Proxy:
		if proxyConfig.URL == "" {
			logger.Warn("SOCKS5 proxy URL is required for setting up proxy")
			return client
		}
		dialFunc = fasthttpproxy.FasthttpSocksDialer(proxyURLWithAuth(proxyConfig, logger))
	case interfaces.EnvProxy:
		dialFunc = fasthttpproxy.FasthttpProxyHTTPDialer()
	default:
		logger.Warn(fmt.Sprintf("invalid proxy configuration: unsupported proxy type: %s", proxyConfig.Type))
		return client
	}

	client.Dial = dialFunc
	return client
}

// proxyURLWithAuth embeds the configured credentials into the proxy URL
func proxyURLWithAuth(proxyConfig *interfaces.ProxyConfig, logger interfaces.Logger) string {
	if proxyConfig.Username == "" || proxyConfig.Password == "" {
		return proxyConfig.URL
	}
	parsedURL, err := url.Parse(proxyConfig.URL)
	if err != nil {
		logger.Warn("invalid proxy configuration: ignoring credentials for unparsable proxy URL")
		return proxyConfig.URL
	}
	parsedURL.User = url.UserPassword(proxyConfig.Username, proxyConfig.Password)
	if proxyConfig.Type == interfaces.HttpProxy {
		// FasthttpHTTPDialer takes user:pass@host:port without a scheme
		return strings.TrimPrefix(strings.TrimPrefix(parsedURL.String(), "http://"), "https://")
	}
	return parsedURL.String()
}

// firstInsertErrorMessage returns the first row error message of an insertAll response
func firstInsertErrorMessage(resp *BigQueryInsertAllResponse) string {
	for _, insertErr := range resp.InsertErrors {
		for _, rowErr := range insertErr.Errors {
			if rowErr.Message != "" {
				return fmt.Sprintf("row %d: %s", insertErr.Index, rowErr.Message)
			}
			if rowErr.Reason != "" {
				return fmt.Sprintf("row %d: %s", insertErr.Index, rowErr.Reason)
			}
		}
	}
	return "no details"
}
