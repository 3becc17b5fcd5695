// Package openaicompat provides a text generation backend for servers that
// expose the OpenAI /v1/completions API, such as vLLM and llama.cpp server.
//
// Usage:
//
//	p := openaicompat.New(openaicompat.Config{
//	    BaseURL:      "http://localhost:8000",
//	    DefaultModel: "TinyLlama/TinyLlama-1.1B-Chat-v1.0",
//	}, logger)
package openaicompat
