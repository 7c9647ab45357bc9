// Package main provides the siteweaver CLI.
//
// siteweaver crawls a website from a root URL, records its link graph and
// reports broken links together with the page that links to them.
//
// Usage:
//
//	siteweaver --crawl https://example.com/
//	siteweaver --crawl https://example.com/ --excel --map
//	siteweaver --map
//
// See --help for all available options.
package main

func main() {
	Execute()
}
