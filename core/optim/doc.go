// Package optim describes linear optimization problems by name rather than by
// position: variables and constraints carry stable identifiers, and solutions
// report primal values and dual values keyed by those identifiers.
//
// Dual values follow a single convention regardless of the back-end. For a
// constraint a·x (sense) b the dual is the multiplier λ of the Lagrangian
// c·x + λ(a·x - b). It is non-negative for LessEq rows, non-positive for
// GreaterEq rows and free for Equal rows, so the optimal objective changes by
// -λ per unit increase of b.
package optim
