// Package classic talks to Mifare Classic cards through a PC/SC reader
// that exposes the ACR122U-style pseudo APDUs (LOAD KEYS, GENERAL
// AUTHENTICATE). It is used to confirm recovered keys against the card
// they came from.
package classic
