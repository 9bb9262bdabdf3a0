// Package auth decides who is calling and what they may do.
//
// Credentials are located by ExtractToken and resolved to a models.Identity
// by a Verifier, which tries an ordered list of strategies (remote identity
// provider first, then locally signed tokens). CanJoin and CanSend are the
// channel and message-type authorization rules; ConnectionAuthenticator
// composes all of them for persistent-connection acceptors.
package auth
