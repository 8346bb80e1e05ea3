// Package extractors provides implementations of driven.StructureExtractor
// for the formats citekit can cite: Markdown and HTML headers, code classes
// and functions, PDF pages and plain-text paragraphs. Text formats are kept
// as-is so line positions refer to the original file. PDF and HTML produce
// derived text and positions refer to that text.
//
// Extractors are registered with the Registry at startup.
package extractors
