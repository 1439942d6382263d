package main

// Mini-games hosted on top of the room layer. The server only coordinates
// rooms, sessions, and score relays; everything below is rendered and
// scored by the web client and rides the opaque message pass-through.

// Memory match
// - Host picks a pair count and a time limit, then starts the game
// - Every player sees the same shuffled card grid and races to find pairs
// - Each flipCard report carries the player's running score; matching all
//   pairs ends the session early for the whole room

// Red envelope rain
// - Envelopes fall across the screen for the duration of the session
// - Tapping an envelope awards its (randomized) amount; totals are relayed
//   as ordinary score reports

// Whack-a-mole
// - Moles spawn on a shared timetable so every player sees the same board
// - Hits score, misses don't; the leaderboard updates live from scoreUpdate
//   broadcasts
