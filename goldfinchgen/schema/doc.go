// Package schema defines the provider-independent model goldfinch works on:
// resolved type descriptors, the subject types being generated for, their
// generation config, and the visibility rules that connect them.
//
// Providers (see package provider) produce Subjects; the golang package
// turns a Subject plus a resolved Visibility and Placement into Go source.
package schema
