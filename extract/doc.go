// Package extract turns fetched HTML into a page title, readable text and
// outbound links.
//
// Visible text is rendered as Markdown so headings survive extraction and
// can become chunk sections. Navigation, scripts, forms and other page
// chrome are dropped before conversion.
package extract
