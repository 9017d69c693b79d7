/*
Package dom models the host page as a live element tree owned by the Go
process.

# Overview

Micro-applications render into regions of a single host document. This
package parses that document once, then hands out Element handles that
support the small set of mutations the lifecycle needs:

  - Attach/detach wrapper subtrees under a container
  - Clear a container before (re)attachment
  - Resolve containers lazily by handle, CSS selector, or XPath
  - Re-host template children inside an isolated sub-root
  - Render the current tree back to HTML

# Concurrency

A Document guards its tree with a RWMutex. Distinct application instances
may mount into different regions concurrently when exclusive mode is off,
so every mutating Element method locks the owning Document.

# Addressing

Containers are addressed at render time, never at configuration time:

	dom.Selector("#subapp-viewport")
	dom.XPath("//div[@data-region='main']")
	dom.NewElementRef(el)

Selector resolution is cascadia-backed via goquery; XPath via htmlquery.
*/
package dom
