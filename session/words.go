package session

import (
	"math/rand"

	"github.com/EatingIting/DRAW-IT/domain"
)

// WordProvider owns the per-mode drawing prompt pools. Words already used
// in the current game are excluded; an exhausted pool is recycled.
type WordProvider struct {
	pools map[domain.GameMode][]string
	rnd   *rand.Rand
}

func NewWordProvider(rnd *rand.Rand) *WordProvider {
	return &WordProvider{pools: defaultWordPools, rnd: rnd}
}

func (wp *WordProvider) PickUniqueWord(usedWords map[string]struct{}, mode domain.GameMode) string {
	pool, ok := wp.pools[mode]
	if !ok {
		pool = wp.pools[domain.ModeRandom]
	}

	available := make([]string, 0, len(pool))
	for _, w := range pool {
		if _, used := usedWords[w]; !used {
			available = append(available, w)
		}
	}

	if len(available) == 0 {
		for w := range usedWords {
			delete(usedWords, w)
		}
		available = append(available, pool...)
	}

	picked := available[wp.rnd.Intn(len(available))]
	usedWords[picked] = struct{}{}
	return picked
}

var defaultWordPools = map[domain.GameMode][]string{
	domain.ModeRandom: {
		"사람", "아이", "어른", "아기", "할아버지", "할머니",
		"손", "발", "눈", "코", "입", "귀", "머리",
		"사과", "바나나", "라면", "치킨",
		"자동차", "비행기", "자전거",
		"집", "학교", "병원", "공원",
		"해", "달", "별", "비", "눈사람",
		"책", "연필", "가방",
		"웃음", "울음", "졸림", "배고픔",
	},
	domain.ModeAnimal: {
		"강아지", "고양이", "토끼", "호랑이", "사자", "곰",
		"말", "소", "돼지", "양", "닭", "오리",
		"물고기", "상어", "고래", "문어",
		"거북이", "펭귄", "독수리", "비둘기",
	},
	domain.ModePokemon: {
		"피카츄", "라이츄", "파이리", "리자몽",
		"꼬부기", "거북왕", "이상해씨", "이상해꽃",
		"이브이", "부스터", "샤미드", "쥬피썬더",
		"잠만보", "푸린", "고라파덕", "냐옹",
		"팬텀", "뮤", "뮤츠",
		"루카리오", "잉어킹", "갸라도스",
	},
	domain.ModeFood: {
		"사과", "바나나", "딸기", "수박",
		"라면", "밥", "김치", "햄버거",
		"피자", "치킨", "아이스크림", "케이크",
	},
	domain.ModeJob: {
		"경찰", "소방관", "의사", "간호사",
		"선생님", "학생", "요리사",
		"운전기사", "파일럿", "군인", "프로그래머",
	},
	domain.ModeSport: {
		"축구", "농구", "야구", "배구",
		"수영", "달리기", "자전거", "테니스",
	},
	domain.ModeObject: {
		"의자", "책상", "침대", "소파",
		"컵", "접시", "숟가락", "포크",
		"가위", "연필", "지우개", "필통",
		"가방", "시계", "안경", "모자",
		"우산", "열쇠", "문", "창문",
		"리모컨", "핸드폰", "텔레비전",
	},
}

// chainStartChars are the syllables a word-chain game may open with.
var chainStartChars = []string{"가", "나", "다", "라", "마", "바", "사", "아", "자", "차", "카", "타", "파", "하"}
