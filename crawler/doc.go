// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package crawler implements a polite, bounded, single-origin website
// crawler together with the robots.txt and sitemap.xml resolvers it uses.
//
// A crawl is a breadth-first traversal seeded with the start URL and any
// same-origin sitemap URLs. Pages are fetched one at a time with a
// per-request timeout and an optional rate limit. Failures on individual
// URLs are logged and skipped; they never abort the crawl. If robots.txt
// disallows the start URL, the crawl returns no pages without fetching
// anything else.
//
// Robots and sitemap lookups fail open: an unreachable or erroring
// robots.txt allows everything, and a missing or malformed sitemap seeds
// nothing.
package crawler
