// Package openai implements clients for OpenAI compatible chat completion
// and embedding endpoints on top of providers.HTTPProvider.
package openai
