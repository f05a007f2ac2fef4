// Package facade is the policy layer between the request pipeline and the
// disk cache. It exposes the two pipeline hooks as a single Fiber middleware:
// on request it may short-circuit with a cached response, after the handler
// ran it may persist the response asynchronously. All cacheability decisions
// (GET only, status allow-list, no-cache bypass, header deny-list) live here;
// the Store below it stores whatever it is given.
package facade
